package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type Level string

const (
	LevelBasic    Level = "Basic"
	LevelModerate Level = "Moderate"
	LevelAdvanced Level = "Advanced"
)

// ParseLevel accepts only the three exact level names.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelBasic, LevelModerate, LevelAdvanced:
		return Level(s), nil
	}
	return "", fmt.Errorf("invalid level %q: must be one of Basic, Moderate, Advanced", s)
}

// Next returns the successor level. Advanced has none.
func (l Level) Next() (Level, bool) {
	switch l {
	case LevelBasic:
		return LevelModerate, true
	case LevelModerate:
		return LevelAdvanced, true
	}
	return "", false
}

type Module struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index;size:64"`
	Topic     string `gorm:"uniqueIndex:idx_module_topic_level"`
	Level     Level  `gorm:"uniqueIndex:idx_module_topic_level;size:16"`
	Content   string
	HasQuiz   bool
	CreatedAt time.Time
}

type Quiz struct {
	ID        string         `gorm:"primaryKey;size:64"`
	ModuleID  string         `gorm:"uniqueIndex;size:64"`
	Questions datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
}

type Answer struct {
	ID         string         `gorm:"primaryKey;size:64"`
	UserID     string         `gorm:"index:idx_answer_user_module;size:64"`
	ModuleID   string         `gorm:"index:idx_answer_user_module;size:64"`
	QuestionID string         `gorm:"size:64"`
	UserAnswer datatypes.JSON
	Score      float64
	Feedback   string
	GradedBy   string `gorm:"size:16"`
	CreatedAt  time.Time
}

type ModuleStatus string

const (
	StatusAvailable ModuleStatus = "Available"
	StatusCompleted ModuleStatus = "Completed"
)

type UserModule struct {
	UserID      string       `gorm:"primaryKey;size:64" json:"user_id"`
	ModuleID    string       `gorm:"primaryKey;size:64" json:"module_id"`
	Status      ModuleStatus `gorm:"size:16" json:"status"`
	Score       float64      `json:"score"`
	UnlockedAt  *time.Time   `json:"unlocked_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (m UserModule) Completed() bool {
	return m.Status == StatusCompleted
}
