package store

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finscholars/backend/models"
)

// LoadUser reads a user with every owned collection in one call.
func (s *Store) LoadUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Interests", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Badges", func(db *gorm.DB) *gorm.DB { return db.Order("earned_at") }).
		Preload("FocusSessions", func(db *gorm.DB) *gorm.DB { return db.Order("start_time DESC") }).
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error)
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("last_login", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceInterests swaps the user's interest set atomically.
func (s *Store) ReplaceInterests(ctx context.Context, userID string, interests []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserInterest{}).Error; err != nil {
			return err
		}
		if len(interests) == 0 {
			return nil
		}
		rows := make([]models.UserInterest, 0, len(interests))
		for _, interest := range interests {
			rows = append(rows, models.UserInterest{UserID: userID, Interest: interest})
		}
		return tx.Create(&rows).Error
	})
}

// UpsertUserModule inserts or overwrites the (user, module) progress row.
func (s *Store) UpsertUserModule(ctx context.Context, row *models.UserModule) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "score", "unlocked_at", "completed_at", "updated_at"}),
		}).
		Create(row).Error
}

func (s *Store) GetUserModule(ctx context.Context, userID, moduleID string) (*models.UserModule, error) {
	var row models.UserModule
	err := s.db.WithContext(ctx).Where("user_id = ? AND module_id = ?", userID, moduleID).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

// AddBadge reports whether a new row was written; an existing (user, badge) pair is left alone.
func (s *Store) AddBadge(ctx context.Context, badge *models.UserBadge) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(badge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) CreateFocusSession(ctx context.Context, fs *models.FocusSession) error {
	return s.db.WithContext(ctx).Create(fs).Error
}

func (s *Store) CloseFocusSession(ctx context.Context, id string, end time.Time, minutes float64) error {
	return s.db.WithContext(ctx).Model(&models.FocusSession{}).Where("id = ?", id).
		Updates(map[string]interface{}{"end_time": end, "duration_minutes": minutes}).Error
}

func (s *Store) SetFocusMode(ctx context.Context, userID string, active bool) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("focus_mode_active", active).Error
}

func (s *Store) UpdateSettings(ctx context.Context, userID string, settings datatypes.JSON) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("settings", settings).Error
}
