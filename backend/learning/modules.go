package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"finscholars/backend/llm"
	"finscholars/backend/models"
	"finscholars/backend/store"
)

// Quiz status values reported to clients.
const (
	QuizGenerating  = "generating"
	QuizReady       = "ready"
	QuizFailed      = "failed"
	QuizUnavailable = "unavailable"
)

type GenerateResult struct {
	Module     *models.Module
	QuizStatus string
	// Existing is set when the (topic, level) module was already stored.
	Existing bool
}

// GenerateModule returns the module for (topic, level), generating the lesson
// when none exists and queueing its quiz. The requesting user gets an
// Available progress row for the module.
func (s *Service) GenerateModule(ctx context.Context, userID, topic, rawLevel string) (*GenerateResult, error) {
	level, err := models.ParseLevel(rawLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidLevel, rawLevel)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrMissingTopic
	}

	existing, err := s.store.FindModule(ctx, topic, level)
	switch {
	case err == nil:
		return s.existingModule(ctx, userID, existing)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	resp, err := s.llm.Generate(llm.WithPurpose(ctx, "lesson"),
		llm.UserPrompt(educatorRole, lessonPrompt(topic, level), lessonMaxTokens))
	if err != nil {
		return nil, fmt.Errorf("generate lesson: %w", err)
	}

	module := &models.Module{
		ID:        uuid.NewString(),
		UserID:    userID,
		Topic:     topic,
		Level:     level,
		Content:   stripFences(resp.Text()),
		CreatedAt: s.now(),
	}
	if err := s.store.CreateModule(ctx, module); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a race with another request for the same pair.
			if found, ferr := s.store.FindModule(ctx, topic, level); ferr == nil {
				return s.existingModule(ctx, userID, found)
			}
		}
		return nil, fmt.Errorf("store module: %w", err)
	}
	s.log.Info("module generated", "module_id", module.ID, "topic", topic, "level", level)

	if err := s.makeAvailable(ctx, userID, module.ID); err != nil {
		return nil, err
	}
	return &GenerateResult{Module: module, QuizStatus: s.enqueueQuiz(ctx, module)}, nil
}

func (s *Service) existingModule(ctx context.Context, userID string, m *models.Module) (*GenerateResult, error) {
	if err := s.makeAvailable(ctx, userID, m.ID); err != nil {
		return nil, err
	}
	status := s.quizStatus(m)
	if status == QuizUnavailable || status == QuizFailed {
		status = s.enqueueQuiz(ctx, m)
	}
	return &GenerateResult{Module: m, QuizStatus: status, Existing: true}, nil
}

// makeAvailable adds an Available progress row unless the user already has one.
func (s *Service) makeAvailable(ctx context.Context, userID, moduleID string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := user.ModuleProgress(moduleID); ok {
		return nil
	}
	now := s.now()
	if err := user.UpdateModuleProgress(ctx, models.UserModule{
		ModuleID:   moduleID,
		Status:     models.StatusAvailable,
		UnlockedAt: &now,
	}); err != nil {
		return err
	}
	s.users.SaveToCache(ctx, user)
	return nil
}

func (s *Service) enqueueQuiz(ctx context.Context, m *models.Module) string {
	_, err := s.jobs.Enqueue(ctx, quizTask{moduleID: m.ID, topic: m.Topic, level: m.Level, content: m.Content})
	if err != nil {
		s.log.Warn("could not queue quiz generation", "module_id", m.ID, "error", err)
		return QuizFailed
	}
	return QuizGenerating
}

func (s *Service) quizStatus(m *models.Module) string {
	if m.HasQuiz {
		return QuizReady
	}
	job, ok := s.jobs.Status(m.ID)
	if !ok {
		return QuizUnavailable
	}
	switch job.Status {
	case JobSucceeded:
		return QuizReady
	case JobFailed:
		return QuizFailed
	}
	return QuizGenerating
}

// generateQuiz is the worker body. A response that yields no valid quiz JSON
// still stores an empty question list, but the job is reported as failed and
// has_quiz stays false.
func (s *Service) generateQuiz(ctx context.Context, task quizTask) (int, error) {
	req := llm.UserPrompt(educatorRole, quizPrompt(task.topic, task.level, task.content), quizMaxTokens)
	req.Schema = quizSchema

	resp, err := s.llm.Generate(llm.WithPurpose(ctx, "quiz"), req)
	var invalid *llm.ErrInvalidResponse
	if err != nil && !errors.As(err, &invalid) {
		return 0, fmt.Errorf("generate quiz: %w", err)
	}

	var payload struct {
		Questions []models.Question `json:"questions"`
	}
	if err = decodeReply(quizSchema, resp, err, &payload); err != nil {
		if serr := s.saveQuiz(ctx, task.moduleID, nil); serr != nil {
			return 0, serr
		}
		return 0, fmt.Errorf("quiz response unusable: %w", err)
	}

	questions := normalizeQuestions(payload.Questions)
	if err := s.saveQuiz(ctx, task.moduleID, questions); err != nil {
		return 0, err
	}
	if err := s.store.MarkHasQuiz(ctx, task.moduleID); err != nil {
		return len(questions), fmt.Errorf("mark has_quiz: %w", err)
	}
	return len(questions), nil
}

// decodeReply pulls schema-valid JSON out of a model reply. Providers that
// validate natively reject prose-wrapped output with ErrInvalidResponse, so
// the raw text it carries is searched for an object as well.
func decodeReply(schema *llm.Schema, resp *llm.Response, err error, v any) error {
	var invalid *llm.ErrInvalidResponse
	switch {
	case err == nil:
		return llm.DecodeJSON(schema, resp.Text(), v)
	case errors.As(err, &invalid) && len(invalid.Content) > 0:
		return llm.DecodeJSON(schema, string(invalid.Content), v)
	}
	return err
}

func (s *Service) saveQuiz(ctx context.Context, moduleID string, questions []models.Question) error {
	if questions == nil {
		questions = []models.Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	quiz := &models.Quiz{ID: uuid.NewString(), ModuleID: moduleID, Questions: datatypes.JSON(raw), CreatedAt: s.now()}
	if err := s.store.SaveQuiz(ctx, quiz); err != nil {
		return fmt.Errorf("store quiz: %w", err)
	}
	return nil
}

// normalizeQuestions gives every question a unique id and drops MCQs whose
// correct index does not point at an option.
func normalizeQuestions(in []models.Question) []models.Question {
	out := make([]models.Question, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, q := range in {
		if q.Type == models.QuestionMCQ && (q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options)) {
			continue
		}
		if q.ID == "" || seen[q.ID] {
			q.ID = fmt.Sprintf("q%d", len(out)+1)
			for seen[q.ID] {
				q.ID += "_"
			}
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	return out
}

// UpdateInterests adds new interests to the user and generates a Basic module for each.
func (s *Service) UpdateInterests(ctx context.Context, userID string, newInterests []string) ([]string, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged := append(user.Interests(), newInterests...)
	if err := user.UpdateInterests(ctx, merged); err != nil {
		return nil, err
	}
	s.users.SaveToCache(ctx, user)

	var ids []string
	for _, topic := range newInterests {
		if strings.TrimSpace(topic) == "" {
			continue
		}
		res, err := s.GenerateModule(ctx, userID, topic, string(models.LevelBasic))
		if err != nil {
			return ids, fmt.Errorf("generate module for %q: %w", topic, err)
		}
		ids = append(ids, res.Module.ID)
	}
	return ids, nil
}

type QuizState struct {
	ModuleID string `json:"module_id"`
	Status   string `json:"status"`
	Job      *Job   `json:"job,omitempty"`
}

// QuizStatus reports whether the module's quiz is ready, still generating or failed.
func (s *Service) QuizStatus(ctx context.Context, moduleID string) (*QuizState, error) {
	m, err := s.ModuleContent(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	state := &QuizState{ModuleID: moduleID, Status: s.quizStatus(m)}
	if job, ok := s.jobs.Status(moduleID); ok {
		state.Job = &job
	}
	return state, nil
}

func (s *Service) ModuleContent(ctx context.Context, moduleID string) (*models.Module, error) {
	m, err := s.store.GetModule(ctx, moduleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrModuleNotFound
	}
	return m, err
}

// ModuleQuiz returns the quiz questions without answers or grading hints.
func (s *Service) ModuleQuiz(ctx context.Context, moduleID string) ([]models.PublicQuestion, error) {
	questions, err := s.questions(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	out := make([]models.PublicQuestion, len(questions))
	for i, q := range questions {
		out[i] = q.Public()
	}
	return out, nil
}

func (s *Service) questions(ctx context.Context, moduleID string) ([]models.Question, error) {
	quiz, err := s.store.QuizByModule(ctx, moduleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	return quiz.DecodeQuestions()
}
