// Package learning generates lessons and quizzes with a language model and
// grades submitted answers.
package learning

import (
	"context"
	"time"

	"finscholars/backend/llm"
	"finscholars/backend/models"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

const (
	PassingThreshold = 80.0

	mcqPerQuiz      = 5
	freeTextPerQuiz = 2

	lessonMaxTokens = 8192
	quizMaxTokens   = 8192
	gradeMaxTokens  = 1024
)

type Store interface {
	CreateModule(ctx context.Context, m *models.Module) error
	GetModule(ctx context.Context, id string) (*models.Module, error)
	FindModule(ctx context.Context, topic string, level models.Level) (*models.Module, error)
	MarkHasQuiz(ctx context.Context, moduleID string) error
	SaveQuiz(ctx context.Context, q *models.Quiz) error
	QuizByModule(ctx context.Context, moduleID string) (*models.Quiz, error)
	CreateAnswer(ctx context.Context, a *models.Answer) error
	AnswerScores(ctx context.Context, userID, moduleID string) ([]float64, error)
}

type Options struct {
	QuizWorkers    int
	QuizQueueSize  int
	QuizJobTimeout time.Duration
}

type Service struct {
	store Store
	users *users.Manager
	llm   llm.Provider
	jobs  *QuizJobs
	log   *utils.Logger
	now   func() time.Time
}

func NewService(st Store, um *users.Manager, provider llm.Provider, opts Options, log *utils.Logger) *Service {
	s := &Service{
		store: st,
		users: um,
		llm:   provider,
		log:   log.With("component", "learning"),
		now:   time.Now,
	}
	s.jobs = newQuizJobs(opts.QuizWorkers, opts.QuizQueueSize, opts.QuizJobTimeout, s.generateQuiz, s.log)
	return s
}

func (s *Service) Jobs() *QuizJobs {
	return s.jobs
}

// Shutdown stops the quiz workers.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.jobs.Shutdown(ctx)
}
