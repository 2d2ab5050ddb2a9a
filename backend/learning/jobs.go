package learning

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"finscholars/backend/metrics"
	"finscholars/backend/models"
	"finscholars/backend/utils"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is the tracked state of one quiz generation.
type Job struct {
	ID         string     `json:"job_id"`
	ModuleID   string     `json:"module_id"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Questions  int        `json:"questions"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (j Job) Active() bool {
	return j.Status == JobPending || j.Status == JobRunning
}

// jobRetention is how long a finished job stays visible to Status.
const jobRetention = time.Hour

type quizTask struct {
	jobID    string
	moduleID string
	topic    string
	level    models.Level
	content  string
}

// quizRunner generates and stores a quiz, returning the number of questions stored.
type quizRunner func(ctx context.Context, task quizTask) (int, error)

// QuizJobs is a fixed pool of workers reading a bounded queue. Enqueue blocks
// while the queue is full.
type QuizJobs struct {
	queue   chan quizTask
	run     quizRunner
	timeout time.Duration
	keep    time.Duration
	log     *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*Job // by module id, latest job only
}

func newQuizJobs(workers, queueSize int, timeout time.Duration, run quizRunner, log *utils.Logger) *QuizJobs {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &QuizJobs{
		queue:   make(chan quizTask, queueSize),
		run:     run,
		timeout: timeout,
		keep:    jobRetention,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*Job),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *QuizJobs) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.queue:
			q.process(task)
		}
	}
}

func (q *QuizJobs) process(task quizTask) {
	q.setStatus(task.moduleID, task.jobID, JobRunning, 0, nil)

	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	n, err := q.safeRun(ctx, task)
	if err != nil {
		q.log.Error("quiz generation failed", "module_id", task.moduleID, "job_id", task.jobID, "error", err)
		metrics.QuizJobs.WithLabelValues(string(JobFailed)).Inc()
		q.setStatus(task.moduleID, task.jobID, JobFailed, n, err)
		return
	}
	q.log.Info("quiz generated", "module_id", task.moduleID, "job_id", task.jobID, "questions", n)
	metrics.QuizJobs.WithLabelValues(string(JobSucceeded)).Inc()
	q.setStatus(task.moduleID, task.jobID, JobSucceeded, n, nil)
}

func (q *QuizJobs) safeRun(ctx context.Context, task quizTask) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("quiz job panicked")
			q.log.Error("quiz job panic", "module_id", task.moduleID, "panic", r)
		}
	}()
	return q.run(ctx, task)
}

// Enqueue registers a pending job for the module and queues it.
func (q *QuizJobs) Enqueue(ctx context.Context, task quizTask) (Job, error) {
	if q.ctx.Err() != nil {
		return Job{}, ErrQueueClosed
	}
	task.jobID = uuid.NewString()
	job := &Job{ID: task.jobID, ModuleID: task.moduleID, Status: JobPending, CreatedAt: time.Now()}

	q.mu.Lock()
	q.prune(job.CreatedAt)
	q.jobs[task.moduleID] = job
	q.mu.Unlock()

	select {
	case q.queue <- task:
		return *job, nil
	case <-ctx.Done():
		q.setStatus(task.moduleID, task.jobID, JobFailed, 0, ctx.Err())
		return Job{}, ctx.Err()
	case <-q.ctx.Done():
		q.setStatus(task.moduleID, task.jobID, JobFailed, 0, ErrQueueClosed)
		return Job{}, ErrQueueClosed
	}
}

func (q *QuizJobs) setStatus(moduleID, jobID string, status JobStatus, questions int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[moduleID]
	if !ok || job.ID != jobID {
		return
	}
	job.Status = status
	job.Questions = questions
	if err != nil {
		job.Error = err.Error()
	}
	if status == JobSucceeded || status == JobFailed {
		now := time.Now()
		job.FinishedAt = &now
	}
}

// prune drops jobs that finished more than keep ago. Callers hold mu.
func (q *QuizJobs) prune(now time.Time) int {
	dropped := 0
	for id, job := range q.jobs {
		if job.Active() || job.FinishedAt == nil {
			continue
		}
		if now.Sub(*job.FinishedAt) > q.keep {
			delete(q.jobs, id)
			dropped++
		}
	}
	return dropped
}

// Status returns the latest job for the module.
func (q *QuizJobs) Status(moduleID string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[moduleID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Shutdown cancels running jobs and waits for the workers to exit.
func (q *QuizJobs) Shutdown(ctx context.Context) error {
	q.cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
