package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"finscholars/backend/llm"
	"finscholars/backend/models"
	"finscholars/backend/store"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

const quizJSON = `Here is your quiz:
{"questions":[
  {"id":"q1","type":"mcq","question":"What is a budget?","options":["A spending plan","A loan","A tax","A stock"],"correct_answer":0,"explanation":"A budget plans income and spending."},
  {"id":"q2","type":"free_text","question":"Why keep an emergency fund?","sample_answer":"To cover surprises.","key_points":["unexpected costs","avoid debt"]}
]}
Good luck!`

type fixture struct {
	svc   *Service
	st    *store.Store
	users *users.Manager
	llm   *llm.MockProvider
	user  string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := utils.OpenTestDB(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)

	st := store.New(db)
	um := users.NewManager(st, nil, 30*time.Minute, utils.NewNopLogger())
	mock := llm.NewMockProvider()
	svc := NewService(st, um, mock, Options{QuizWorkers: 1, QuizQueueSize: 4, QuizJobTimeout: 5 * time.Second}, utils.NewNopLogger())
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	u, err := um.Create(context.Background(), uuid.NewString(), "learner@example.com", "")
	require.NoError(t, err)

	return &fixture{svc: svc, st: st, users: um, llm: mock, user: u.ID()}
}

func (f *fixture) seedModule(t *testing.T, topic string, level models.Level, questions ...models.Question) *models.Module {
	t.Helper()
	ctx := context.Background()
	m := &models.Module{ID: uuid.NewString(), UserID: f.user, Topic: topic, Level: level, Content: "<h1>" + topic + "</h1>", HasQuiz: len(questions) > 0}
	require.NoError(t, f.st.CreateModule(ctx, m))
	if len(questions) > 0 {
		raw, err := json.Marshal(questions)
		require.NoError(t, err)
		require.NoError(t, f.st.SaveQuiz(ctx, &models.Quiz{ID: uuid.NewString(), ModuleID: m.ID, Questions: datatypes.JSON(raw)}))
	}
	return m
}

func (f *fixture) waitForJob(t *testing.T, moduleID string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = f.svc.Jobs().Status(moduleID)
		return ok && !job.Active()
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

var mcq = models.Question{
	ID: "q1", Type: models.QuestionMCQ, Question: "What is a budget?",
	Options:       []string{"A spending plan", "A loan", "A tax", "A stock"},
	CorrectAnswer: 0, Explanation: "A budget plans income and spending.",
}

var freeText = models.Question{
	ID: "q2", Type: models.QuestionFreeText, Question: "Why keep an emergency fund?",
	SampleAnswer: "To cover surprises.", KeyPoints: []string{"unexpected costs"},
}

func TestGenerateModule_InvalidLevel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.GenerateModule(ctx, f.user, "Budgeting", "Expert")
	require.ErrorIs(t, err, ErrInvalidLevel)
	assert.Contains(t, err.Error(), "Expert")
	assert.Zero(t, f.llm.CallCount())

	_, err = f.st.FindModule(ctx, "Budgeting", models.Level("Expert"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerateModule_MissingTopic(t *testing.T) {
	f := setup(t)
	_, err := f.svc.GenerateModule(context.Background(), f.user, "  ", "Basic")
	assert.ErrorIs(t, err, ErrMissingTopic)
	assert.Zero(t, f.llm.CallCount())
}

func TestGenerateModule_LessonThenQuiz(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.AddResponse(llm.TextResponse("```html\n<h1>Budgeting</h1><p>Plan ahead.</p>\n```"))
	f.llm.AddResponse(llm.TextResponse(quizJSON))

	res, err := f.svc.GenerateModule(ctx, f.user, "Budgeting", "Basic")
	require.NoError(t, err)
	assert.Equal(t, QuizGenerating, res.QuizStatus)
	assert.False(t, res.Existing)
	assert.Equal(t, "<h1>Budgeting</h1><p>Plan ahead.</p>", res.Module.Content)

	job := f.waitForJob(t, res.Module.ID)
	assert.Equal(t, JobSucceeded, job.Status)
	assert.Equal(t, 2, job.Questions)

	stored, err := f.svc.ModuleContent(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasQuiz)

	quiz, err := f.svc.ModuleQuiz(ctx, res.Module.ID)
	require.NoError(t, err)
	require.Len(t, quiz, 2)
	assert.Equal(t, []string{"A spending plan", "A loan", "A tax", "A stock"}, quiz[0].Options)

	raw, err := json.Marshal(quiz)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_answer")
	assert.NotContains(t, string(raw), "sample_answer")

	u, err := f.users.Get(ctx, f.user)
	require.NoError(t, err)
	row, ok := u.ModuleProgress(res.Module.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusAvailable, row.Status)

	last, ok := f.llm.LastCall()
	require.True(t, ok)
	assert.Equal(t, quizSchema, last.Schema)
	assert.Contains(t, last.Messages[0].Content, "<p>Plan ahead.</p>")

	state, err := f.svc.QuizStatus(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.Equal(t, QuizReady, state.Status)
}

func TestGenerateModule_ExistingSkipsModel(t *testing.T) {
	f := setup(t)
	m := f.seedModule(t, "Saving", models.LevelBasic, mcq)

	res, err := f.svc.GenerateModule(context.Background(), f.user, "Saving", "Basic")
	require.NoError(t, err)
	assert.True(t, res.Existing)
	assert.Equal(t, m.ID, res.Module.ID)
	assert.Equal(t, QuizReady, res.QuizStatus)
	assert.Zero(t, f.llm.CallCount())
}

// strictReply is what a natively validating provider returns for JSON wrapped in prose.
func strictReply(text string) llm.MockResponse {
	return llm.MockResponse{Err: &llm.ErrInvalidResponse{
		Content: json.RawMessage(text),
		Err:     errors.New("invalid JSON: invalid character 'H' looking for beginning of value"),
	}}
}

func TestGenerateModule_QuizWrappedInProseByStrictProvider(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.AddResponse(llm.TextResponse("<h1>Budgeting</h1>"))
	f.llm.AddResponse(strictReply(quizJSON))

	res, err := f.svc.GenerateModule(ctx, f.user, "Budgeting", "Basic")
	require.NoError(t, err)

	job := f.waitForJob(t, res.Module.ID)
	assert.Equal(t, JobSucceeded, job.Status, job.Error)

	quiz, err := f.svc.ModuleQuiz(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.Len(t, quiz, 2)
}

func TestGenerateModule_ProviderErrorStoresNoQuiz(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.AddResponse(llm.TextResponse("<h1>Loans</h1>"))
	f.llm.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})

	res, err := f.svc.GenerateModule(ctx, f.user, "Loans", "Basic")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, f.waitForJob(t, res.Module.ID).Status)

	_, err = f.svc.ModuleQuiz(ctx, res.Module.ID)
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestSubmitAnswer_GradeWrappedInProseByStrictProvider(t *testing.T) {
	f := setup(t)
	m := f.seedModule(t, "Saving", models.LevelBasic, freeText)
	f.llm.AddResponse(strictReply("Here is the grade:\n```json\n{\"score\": 85, \"feedback\": \"Solid answer.\"}\n```"))

	grade, err := f.svc.SubmitAnswer(context.Background(), Submission{
		UserID: f.user, ModuleID: m.ID, QuestionID: "q2", QuestionType: "free_text",
		Answer: json.RawMessage(`"For unexpected costs."`),
	})
	require.NoError(t, err)
	assert.False(t, grade.Fallback)
	assert.Equal(t, GradedByModel, grade.GradedBy)
	assert.Equal(t, 85.0, grade.Score)
	assert.Equal(t, "Solid answer.", grade.Feedback)
}

func TestGenerateModule_BadQuizJSONStoresEmptyQuiz(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.AddResponse(llm.TextResponse("<h1>Credit</h1>"))
	f.llm.AddResponse(llm.TextResponse("Sorry, I cannot produce a quiz today."))

	res, err := f.svc.GenerateModule(ctx, f.user, "Credit", "Basic")
	require.NoError(t, err)

	job := f.waitForJob(t, res.Module.ID)
	assert.Equal(t, JobFailed, job.Status)
	assert.NotEmpty(t, job.Error)

	quiz, err := f.svc.ModuleQuiz(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.Empty(t, quiz)

	stored, err := f.svc.ModuleContent(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasQuiz)

	state, err := f.svc.QuizStatus(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.Equal(t, QuizFailed, state.Status)

	// Asking again retries the quiz without regenerating the lesson.
	f.llm.AddResponse(llm.TextResponse(quizJSON))
	again, err := f.svc.GenerateModule(ctx, f.user, "Credit", "Basic")
	require.NoError(t, err)
	assert.Equal(t, QuizGenerating, again.QuizStatus)
	assert.Equal(t, JobSucceeded, f.waitForJob(t, res.Module.ID).Status)
	assert.Equal(t, 3, f.llm.CallCount())
}

func TestSubmitAnswer_MCQ(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.seedModule(t, "Budgeting", models.LevelBasic, mcq)

	grade, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: m.ID, QuestionID: "q1", Answer: json.RawMessage(`0`)})
	require.NoError(t, err)
	assert.Equal(t, 100.0, grade.Score)
	assert.Equal(t, GradedByMCQ, grade.GradedBy)
	assert.Nil(t, grade.FinalResult)

	grade, err = f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: m.ID, QuestionID: "q1", Answer: json.RawMessage(`3`), QuestionType: "mcq"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, grade.Score)
	assert.Contains(t, grade.Feedback, "A spending plan")

	scores, err := f.st.AnswerScores(ctx, f.user, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 0}, scores)
	assert.Zero(t, f.llm.CallCount())
}

func TestSubmitAnswer_MCQNonIntegerAnswersScoreZero(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.seedModule(t, "Budgeting", models.LevelBasic, mcq)

	for _, answer := range []string{`"0"`, `1.5`, `0.0`, `"A spending plan"`, `[0]`, `true`} {
		grade, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: m.ID, QuestionID: "q1", Answer: json.RawMessage(answer)})
		require.NoError(t, err, answer)
		assert.Equal(t, 0.0, grade.Score, answer)
		assert.True(t, strings.HasPrefix(grade.Feedback, "Incorrect. The correct answer is: A spending plan."), answer)
	}

	scores, err := f.st.AnswerScores(ctx, f.user, m.ID)
	require.NoError(t, err)
	assert.Len(t, scores, 6)

	// A non-integer final answer still closes the module.
	grade, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: m.ID, QuestionID: "q1", Answer: json.RawMessage(`"0"`), IsFinal: true})
	require.NoError(t, err)
	require.NotNil(t, grade.FinalResult)
	assert.Equal(t, 0.0, grade.FinalResult.Percentage)
	assert.False(t, grade.FinalResult.Passed)
}

func TestSubmitAnswer_MissingMCQAnswer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.seedModule(t, "Budgeting", models.LevelBasic, mcq)

	for _, answer := range []json.RawMessage{nil, json.RawMessage(`null`)} {
		_, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: m.ID, QuestionID: "q1", Answer: answer})
		assert.ErrorIs(t, err, ErrInvalidAnswer)
	}
	scores, err := f.st.AnswerScores(ctx, f.user, m.ID)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestSubmitAnswer_Lookups(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.seedModule(t, "Budgeting", models.LevelBasic, mcq)
	bare := f.seedModule(t, "Taxes", models.LevelBasic)

	_, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: m.ID, QuestionID: "q9", Answer: json.RawMessage(`0`)})
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: bare.ID, QuestionID: "q1", Answer: json.RawMessage(`0`)})
	assert.ErrorIs(t, err, ErrQuizNotFound)

	_, err = f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: m.ID, QuestionID: "q1", Answer: json.RawMessage(`0`), QuestionType: "essay"})
	assert.ErrorIs(t, err, ErrInvalidQuestionType)
}

func TestSubmitAnswer_FreeTextFallback(t *testing.T) {
	f := setup(t)
	m := f.seedModule(t, "Saving", models.LevelBasic, freeText)
	f.llm.AddResponse(llm.TextResponse("I think this answer is pretty good."))

	grade, err := f.svc.SubmitAnswer(context.Background(), Submission{
		UserID: f.user, ModuleID: m.ID, QuestionID: "q2", QuestionType: "free_text",
		Answer: json.RawMessage(`"For unexpected costs."`),
	})
	require.NoError(t, err)
	assert.Equal(t, 70.0, grade.Score)
	assert.True(t, grade.Fallback)
	assert.Equal(t, GradedByFallback, grade.GradedBy)

	last, _ := f.llm.LastCall()
	assert.Contains(t, last.Messages[0].Content, "Student Answer: For unexpected costs.")
}

func TestSubmitAnswer_FinalPassUnlocksNextLevel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	basic := f.seedModule(t, "Investing", models.LevelBasic, mcq, freeText)
	moderate := f.seedModule(t, "Investing", models.LevelModerate, mcq)

	for _, score := range []float64{100, 70, 60} {
		require.NoError(t, f.st.CreateAnswer(ctx, &models.Answer{
			ID: uuid.NewString(), UserID: f.user, ModuleID: basic.ID, QuestionID: "q1", Score: score, CreatedAt: time.Now(),
		}))
	}
	f.llm.AddResponse(llm.TextResponse(`{"score": 90, "feedback": "Covers both key points."}`))

	grade, err := f.svc.SubmitAnswer(ctx, Submission{
		UserID: f.user, ModuleID: basic.ID, QuestionID: "q2", QuestionType: "free_text",
		Answer: json.RawMessage(`"Unexpected costs without debt."`), IsFinal: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, grade.Score)
	assert.Equal(t, GradedByModel, grade.GradedBy)

	require.NotNil(t, grade.FinalResult)
	assert.Equal(t, 80.0, grade.FinalResult.Percentage)
	assert.True(t, grade.FinalResult.Passed)
	assert.Equal(t, 80.0, grade.FinalResult.PassingThreshold)
	require.NotNil(t, grade.FinalResult.NextModule)
	assert.Equal(t, moderate.ID, grade.FinalResult.NextModule.ID)
	assert.Equal(t, models.LevelModerate, grade.FinalResult.NextModule.Level)

	u, err := f.users.Get(ctx, f.user)
	require.NoError(t, err)
	row, ok := u.ModuleProgress(basic.ID)
	require.True(t, ok)
	assert.True(t, row.Completed())
	assert.Equal(t, 80.0, row.Score)
	next, ok := u.ModuleProgress(moderate.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusAvailable, next.Status)
	badges := u.Profile().Badges
	require.Len(t, badges, 1)
	assert.Equal(t, "basic_complete", badges[0].BadgeID)

	stored, err := f.st.GetUserModule(ctx, f.user, moderate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, stored.Status)
}

func TestSubmitAnswer_FinalFailDoesNotUnlock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	basic := f.seedModule(t, "Insurance", models.LevelBasic, mcq)
	f.seedModule(t, "Insurance", models.LevelModerate, mcq)

	grade, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: basic.ID, QuestionID: "q1", Answer: json.RawMessage(`2`), IsFinal: true})
	require.NoError(t, err)
	require.NotNil(t, grade.FinalResult)
	assert.Equal(t, 0.0, grade.FinalResult.Percentage)
	assert.False(t, grade.FinalResult.Passed)
	assert.Nil(t, grade.FinalResult.NextModule)

	u, err := f.users.Get(ctx, f.user)
	require.NoError(t, err)
	_, ok := u.ModuleProgress(basic.ID)
	assert.False(t, ok)
}

func TestSubmitAnswer_NoUnlockWithoutNextModule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	basic := f.seedModule(t, "Pensions", models.LevelBasic, mcq)
	advanced := f.seedModule(t, "Pensions", models.LevelAdvanced, mcq)

	grade, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: basic.ID, QuestionID: "q1", Answer: json.RawMessage(`0`), IsFinal: true})
	require.NoError(t, err)
	assert.True(t, grade.FinalResult.Passed)
	assert.Nil(t, grade.FinalResult.NextModule, "no Moderate module exists yet")

	grade, err = f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: advanced.ID, QuestionID: "q1", Answer: json.RawMessage(`0`), IsFinal: true})
	require.NoError(t, err)
	assert.True(t, grade.FinalResult.Passed)
	assert.Nil(t, grade.FinalResult.NextModule, "Advanced has no successor")
}

func TestSubmitAnswer_UnlockKeepsCompletedModule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	basic := f.seedModule(t, "Stocks", models.LevelBasic, mcq)
	moderate := f.seedModule(t, "Stocks", models.LevelModerate, mcq)

	_, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: moderate.ID, QuestionID: "q1", Answer: json.RawMessage(`0`), IsFinal: true})
	require.NoError(t, err)

	grade, err := f.svc.SubmitAnswer(ctx, Submission{UserID: f.user, ModuleID: basic.ID, QuestionID: "q1", Answer: json.RawMessage(`0`), IsFinal: true})
	require.NoError(t, err)
	require.NotNil(t, grade.FinalResult.NextModule)

	u, err := f.users.Get(ctx, f.user)
	require.NoError(t, err)
	row, ok := u.ModuleProgress(moderate.ID)
	require.True(t, ok)
	assert.True(t, row.Completed())
	assert.Equal(t, 100.0, row.Score)
}

func TestUpdateInterests_GeneratesBasicModules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	existing := f.seedModule(t, "Saving", models.LevelBasic, mcq)
	f.llm.AddResponse(llm.TextResponse("<h1>Crypto</h1>"))

	ids, err := f.svc.UpdateInterests(ctx, f.user, []string{"Saving", "Crypto", " "})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, existing.ID, ids[0])

	u, err := f.users.Get(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saving", "Crypto"}, u.Interests())

	f.waitForJob(t, ids[1])
}

func TestNormalizeQuestions(t *testing.T) {
	in := []models.Question{
		{ID: "q1", Type: models.QuestionMCQ, Options: []string{"a", "b"}, CorrectAnswer: 1},
		{ID: "q1", Type: models.QuestionFreeText},
		{Type: models.QuestionFreeText},
		{ID: "bad", Type: models.QuestionMCQ, Options: []string{"a"}, CorrectAnswer: 3},
	}
	out := normalizeQuestions(in)
	require.Len(t, out, 3)
	assert.Equal(t, "q1", out[0].ID)
	assert.Equal(t, "q2", out[1].ID)
	assert.Equal(t, "q3", out[2].ID)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "<p>x</p>", stripFences("```html\n<p>x</p>\n```"))
	assert.Equal(t, "<p>x</p>", stripFences("  <p>x</p> "))
}

func TestQuizJobs_EnqueueAfterShutdown(t *testing.T) {
	jobs := newQuizJobs(1, 1, time.Second, func(context.Context, quizTask) (int, error) { return 1, nil }, utils.NewNopLogger())
	require.NoError(t, jobs.Shutdown(context.Background()))

	_, err := jobs.Enqueue(context.Background(), quizTask{moduleID: "m1"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQuizJobs_RecoversPanics(t *testing.T) {
	jobs := newQuizJobs(1, 1, time.Second, func(context.Context, quizTask) (int, error) { panic("boom") }, utils.NewNopLogger())
	t.Cleanup(func() { _ = jobs.Shutdown(context.Background()) })

	_, err := jobs.Enqueue(context.Background(), quizTask{moduleID: "m1"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, ok := jobs.Status("m1")
		return ok && job.Status == JobFailed
	}, time.Second, 5*time.Millisecond)
}

func TestQuizJobs_PrunesFinishedJobsPastRetention(t *testing.T) {
	q := newQuizJobs(1, 1, time.Second, func(context.Context, quizTask) (int, error) { return 1, nil }, utils.NewNopLogger())
	t.Cleanup(func() { _ = q.Shutdown(context.Background()) })

	now := time.Now()
	old := now.Add(-2 * jobRetention)
	recent := now.Add(-time.Minute)
	q.mu.Lock()
	q.jobs["old"] = &Job{ID: "j1", ModuleID: "old", Status: JobSucceeded, FinishedAt: &old}
	q.jobs["failed"] = &Job{ID: "j2", ModuleID: "failed", Status: JobFailed, FinishedAt: &old}
	q.jobs["recent"] = &Job{ID: "j3", ModuleID: "recent", Status: JobSucceeded, FinishedAt: &recent}
	q.jobs["running"] = &Job{ID: "j4", ModuleID: "running", Status: JobRunning, CreatedAt: old}
	q.mu.Unlock()

	job, err := q.Enqueue(context.Background(), quizTask{moduleID: "fresh", topic: "Saving", level: models.LevelBasic})
	require.NoError(t, err)
	assert.Equal(t, "fresh", job.ModuleID)

	_, ok := q.Status("old")
	assert.False(t, ok)
	_, ok = q.Status("failed")
	assert.False(t, ok)
	_, ok = q.Status("recent")
	assert.True(t, ok)
	_, ok = q.Status("running")
	assert.True(t, ok)
	_, ok = q.Status("fresh")
	assert.True(t, ok)
}

func TestQuizStatus_PrunedJobFallsBackToStoredQuiz(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.AddResponse(llm.TextResponse("<h1>Budgeting</h1>"))
	f.llm.AddResponse(llm.TextResponse(quizJSON))

	res, err := f.svc.GenerateModule(ctx, f.user, "Budgeting", "Basic")
	require.NoError(t, err)
	require.Equal(t, JobSucceeded, f.waitForJob(t, res.Module.ID).Status)

	jobs := f.svc.Jobs()
	jobs.mu.Lock()
	jobs.prune(time.Now().Add(2 * jobRetention))
	jobs.mu.Unlock()
	_, ok := jobs.Status(res.Module.ID)
	require.False(t, ok)

	state, err := f.svc.QuizStatus(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.Equal(t, QuizReady, state.Status)
	assert.Nil(t, state.Job)

	quiz, err := f.svc.ModuleQuiz(ctx, res.Module.ID)
	require.NoError(t, err)
	assert.Len(t, quiz, 2)
}

const syllabusJSON = `Here are the units:
{"units":[
  {"unit_title":" Budgeting Basics ","key_summary":"Plan income and spending.","key_topics":["income"," ","expenses","50/30/20 rule","tracking","envelopes","apps"]},
  {"unit_title":"Saving","key_summary":"Build an emergency fund.","key_topics":["emergency fund","automation","high-yield accounts"]},
  {"unit_title":"budgeting basics","key_summary":"Repeated unit.","key_topics":["x","y","z"]}
]}`

func TestProcessSyllabus_GeneratesModulePerUnit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	saving := f.seedModule(t, "Saving", models.LevelBasic, mcq)
	f.llm.AddResponseFor("syllabus", llm.TextResponse(syllabusJSON))
	f.llm.AddResponseFor("lesson", llm.TextResponse("<h1>Budgeting Basics</h1>"))
	f.llm.AddResponseFor("quiz", llm.TextResponse(quizJSON))

	res, err := f.svc.ProcessSyllabus(ctx, f.user, "Week 1: Budgeting\nWeek 2: Saving\nPage 3")
	require.NoError(t, err)

	require.Len(t, res.Units, 2)
	assert.Equal(t, "Budgeting Basics", res.Units[0].Title)
	assert.Equal(t, []string{"income", "expenses", "50/30/20 rule", "tracking", "envelopes"}, res.Units[0].Topics)
	assert.Equal(t, "Saving", res.Units[1].Title)

	require.Len(t, res.ModuleIDs, 2)
	assert.Equal(t, saving.ID, res.ModuleIDs[1])
	assert.Equal(t, JobSucceeded, f.waitForJob(t, res.ModuleIDs[0]).Status)

	m, err := f.svc.ModuleContent(ctx, res.ModuleIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "Budgeting Basics", m.Topic)
	assert.Equal(t, models.LevelBasic, m.Level)

	u, err := f.users.Get(ctx, f.user)
	require.NoError(t, err)
	_, ok := u.ModuleProgress(res.ModuleIDs[0])
	assert.True(t, ok)
	_, ok = u.ModuleProgress(saving.ID)
	assert.True(t, ok)
}

func TestParseSyllabus_RejectsEmptyText(t *testing.T) {
	f := setup(t)
	for _, text := range []string{"", "  \n\t", "\xff\xfe"} {
		_, err := f.svc.ParseSyllabus(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptySyllabus)
	}
	assert.Equal(t, 0, f.llm.CallCount())
}

func TestParseSyllabus_CapsUnits(t *testing.T) {
	f := setup(t)
	var units []string
	for i := 0; i < 10; i++ {
		units = append(units, fmt.Sprintf(`{"unit_title":"Unit %d","key_summary":"s","key_topics":["a","b","c"]}`, i))
	}
	f.llm.AddResponseFor("syllabus", llm.TextResponse(`{"units":[`+strings.Join(units, ",")+`]}`))

	got, err := f.svc.ParseSyllabus(context.Background(), "A long syllabus")
	require.NoError(t, err)
	require.Len(t, got, maxSyllabusUnits)
	assert.Equal(t, "Unit 7", got[7].Title)

	call, ok := f.llm.LastCall()
	require.True(t, ok)
	assert.Equal(t, syllabusSchema, call.Schema)
	assert.Contains(t, call.Messages[0].Content, "A long syllabus")
}

func TestParseSyllabus_UnusableReplies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.llm.AddResponseFor("syllabus", llm.TextResponse("I could not find any units."))
	_, err := f.svc.ParseSyllabus(ctx, "Week 1")
	assert.ErrorIs(t, err, ErrSyllabusUnusable)

	f.llm.AddResponseFor("syllabus", strictReply("```json\n"+`{"units":[{"unit_title":"Credit","key_summary":"s","key_topics":["a","b","c"]}]}`+"\n```"))
	got, err := f.svc.ParseSyllabus(ctx, "Week 1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Credit", got[0].Title)

	f.llm.AddResponseFor("syllabus", llm.MockResponse{Err: errors.New("quota exceeded")})
	_, err = f.svc.ParseSyllabus(ctx, "Week 1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSyllabusUnusable)
}
