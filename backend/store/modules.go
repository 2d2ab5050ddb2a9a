package store

import (
	"context"

	"gorm.io/gorm/clause"

	"finscholars/backend/models"
)

func (s *Store) CreateModule(ctx context.Context, m *models.Module) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

func (s *Store) GetModule(ctx context.Context, id string) (*models.Module, error) {
	var m models.Module
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// FindModule looks a module up by its (topic, level) key.
func (s *Store) FindModule(ctx context.Context, topic string, level models.Level) (*models.Module, error) {
	var m models.Module
	err := s.db.WithContext(ctx).Where("topic = ? AND level = ?", topic, level).First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Store) MarkHasQuiz(ctx context.Context, moduleID string) error {
	return s.db.WithContext(ctx).Model(&models.Module{}).Where("id = ?", moduleID).
		Update("has_quiz", true).Error
}

// SaveQuiz stores the quiz for a module, replacing questions already stored for it.
func (s *Store) SaveQuiz(ctx context.Context, q *models.Quiz) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "module_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"questions"}),
		}).
		Create(q).Error
}

func (s *Store) QuizByModule(ctx context.Context, moduleID string) (*models.Quiz, error) {
	var q models.Quiz
	if err := s.db.WithContext(ctx).Where("module_id = ?", moduleID).First(&q).Error; err != nil {
		return nil, translate(err)
	}
	return &q, nil
}

func (s *Store) CreateAnswer(ctx context.Context, a *models.Answer) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// AnswerScores returns every stored score for (user, module) in submission order.
func (s *Store) AnswerScores(ctx context.Context, userID, moduleID string) ([]float64, error) {
	var scores []float64
	err := s.db.WithContext(ctx).Model(&models.Answer{}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Order("created_at").
		Pluck("score", &scores).Error
	return scores, err
}
