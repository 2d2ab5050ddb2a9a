package learning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"finscholars/backend/llm"
	"finscholars/backend/metrics"
	"finscholars/backend/models"
	"finscholars/backend/store"
)

// Who produced a grade.
const (
	GradedByMCQ      = "mcq"
	GradedByModel    = "model"
	GradedByFallback = "fallback"
)

const (
	fallbackScore    = 70.0
	fallbackFeedback = "Your answer was evaluated but we couldn't generate detailed feedback."
)

type Submission struct {
	UserID       string
	ModuleID     string
	QuestionID   string
	Answer       json.RawMessage
	QuestionType string
	IsFinal      bool
}

type Grade struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
	GradedBy string  `json:"graded_by"`
	// Fallback marks a free-text answer the model could not grade.
	Fallback    bool         `json:"fallback,omitempty"`
	FinalResult *FinalResult `json:"final_result,omitempty"`
}

type FinalResult struct {
	Percentage       float64     `json:"percentage"`
	Passed           bool        `json:"passed"`
	PassingThreshold float64     `json:"passing_threshold"`
	NextModule       *NextModule `json:"next_module"`
}

type NextModule struct {
	ID    string       `json:"id"`
	Level models.Level `json:"level"`
	Topic string       `json:"topic"`
}

// SubmitAnswer grades one answer and stores it. On the final question the
// stored scores for the module are averaged and, when the average passes, the
// module is completed and the next level's module is unlocked.
func (s *Service) SubmitAnswer(ctx context.Context, sub Submission) (*Grade, error) {
	qtype := models.QuestionType(sub.QuestionType)
	if qtype == "" {
		qtype = models.QuestionMCQ
	}
	if qtype != models.QuestionMCQ && qtype != models.QuestionFreeText {
		return nil, ErrInvalidQuestionType
	}

	questions, err := s.questions(ctx, sub.ModuleID)
	if err != nil {
		return nil, err
	}
	question, ok := models.FindQuestion(questions, sub.QuestionID)
	if !ok {
		return nil, ErrQuestionNotFound
	}

	var grade *Grade
	if qtype == models.QuestionMCQ {
		grade, err = gradeMCQ(question, sub.Answer)
		if err != nil {
			return nil, err
		}
	} else {
		grade = s.gradeFreeText(ctx, question, answerText(sub.Answer))
	}
	result := "incorrect"
	switch {
	case grade.Fallback:
		result = "fallback"
	case grade.Score >= PassingThreshold:
		result = "correct"
	}
	metrics.AnswersGraded.WithLabelValues(string(qtype), result).Inc()

	answer := &models.Answer{
		ID:         uuid.NewString(),
		UserID:     sub.UserID,
		ModuleID:   sub.ModuleID,
		QuestionID: sub.QuestionID,
		UserAnswer: datatypes.JSON(sub.Answer),
		Score:      grade.Score,
		Feedback:   grade.Feedback,
		GradedBy:   grade.GradedBy,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateAnswer(ctx, answer); err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}

	if sub.IsFinal {
		final, err := s.finish(ctx, sub.UserID, sub.ModuleID, grade.Score)
		if err != nil {
			return nil, err
		}
		grade.FinalResult = final
	}
	return grade, nil
}

// gradeMCQ scores 100 only for a JSON integer equal to the correct index.
// Strings, fractions and other values are graded as wrong answers.
func gradeMCQ(q models.Question, raw json.RawMessage) (*Grade, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: user_answer is required", ErrInvalidAnswer)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	var choice int64 = -1
	if err := dec.Decode(&v); err == nil {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				choice = i
			}
		}
	}

	if choice == int64(q.CorrectAnswer) {
		return &Grade{Score: 100, Feedback: q.Explanation, GradedBy: GradedByMCQ}, nil
	}
	correct := ""
	if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
		correct = q.Options[q.CorrectAnswer]
	}
	feedback := strings.TrimSpace(fmt.Sprintf("Incorrect. The correct answer is: %s. %s", correct, q.Explanation))
	return &Grade{Score: 0, Feedback: feedback, GradedBy: GradedByMCQ}, nil
}

// answerText renders a free-text answer; JSON strings are unquoted.
func answerText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (s *Service) gradeFreeText(ctx context.Context, q models.Question, answer string) *Grade {
	req := llm.UserPrompt(educatorRole, gradePrompt(q, answer), gradeMaxTokens)
	req.Schema = gradeSchema

	resp, err := s.llm.Generate(llm.WithPurpose(ctx, "grade"), req)
	var out struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err = decodeReply(gradeSchema, resp, err, &out); err != nil {
		s.log.Warn("free-text grading fell back", "question_id", q.ID, "error", err)
		return &Grade{Score: fallbackScore, Feedback: fallbackFeedback, GradedBy: GradedByFallback, Fallback: true}
	}
	return &Grade{Score: out.Score, Feedback: out.Feedback, GradedBy: GradedByModel}
}

// finish averages every stored score for the module and applies pass/unlock.
func (s *Service) finish(ctx context.Context, userID, moduleID string, current float64) (*FinalResult, error) {
	scores, err := s.store.AnswerScores(ctx, userID, moduleID)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		scores = []float64{current}
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	pct := math.Round(sum/float64(len(scores))*100) / 100

	res := &FinalResult{Percentage: pct, Passed: pct >= PassingThreshold, PassingThreshold: PassingThreshold}
	if !res.Passed {
		return res, nil
	}

	module, err := s.ModuleContent(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := user.UpdateModuleProgress(ctx, models.UserModule{
		ModuleID:    moduleID,
		Status:      models.StatusCompleted,
		Score:       pct,
		CompletedAt: &now,
	}); err != nil {
		return nil, err
	}
	defer s.users.SaveToCache(ctx, user)

	badgeID := strings.ToLower(string(module.Level)) + "_complete"
	if _, err := user.AddBadge(ctx, badgeID, fmt.Sprintf("%s Level Complete", module.Level),
		fmt.Sprintf("Passed a %s module quiz", module.Level)); err != nil {
		s.log.Warn("could not award badge", "user_id", userID, "badge_id", badgeID, "error", err)
	}

	nextLevel, ok := module.Level.Next()
	if !ok {
		return res, nil
	}
	next, err := s.store.FindModule(ctx, module.Topic, nextLevel)
	if errors.Is(err, store.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	// A completed next module keeps its status and score.
	if row, ok := user.ModuleProgress(next.ID); !ok || !row.Completed() {
		if err := user.UpdateModuleProgress(ctx, models.UserModule{
			ModuleID:   next.ID,
			Status:     models.StatusAvailable,
			UnlockedAt: &now,
		}); err != nil {
			return nil, err
		}
	}
	res.NextModule = &NextModule{ID: next.ID, Level: next.Level, Topic: next.Topic}
	s.log.Info("module passed", "user_id", userID, "module_id", moduleID, "score", pct, "unlocked", next.ID)
	return res, nil
}
