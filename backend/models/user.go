package models

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID              string `gorm:"primaryKey;size:64"`
	Email           string `gorm:"index"`
	DisplayName     string
	ProfileImageURL string
	Settings        datatypes.JSON
	FocusModeActive bool
	CreatedAt       time.Time
	LastLogin       time.Time
	UpdatedAt       time.Time

	Interests     []UserInterest `gorm:"foreignKey:UserID"`
	Modules       []UserModule   `gorm:"foreignKey:UserID"`
	Badges        []UserBadge    `gorm:"foreignKey:UserID"`
	FocusSessions []FocusSession `gorm:"foreignKey:UserID"`
}

type UserInterest struct {
	ID       uint   `gorm:"primaryKey"`
	UserID   string `gorm:"index;size:64"`
	Interest string
}

type UserBadge struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"uniqueIndex:idx_user_badge;size:64"`
	BadgeID     string `gorm:"uniqueIndex:idx_user_badge;size:64"`
	Name        string
	Description string
	EarnedAt    time.Time
}

type FocusSession struct {
	ID              string `gorm:"primaryKey;size:64"`
	UserID          string `gorm:"index;size:64"`
	StartTime       time.Time
	EndTime         *time.Time
	DurationMinutes float64
	CreatedAt       time.Time
}

// Credential is the identity provider's record; it is never exposed through the user snapshot.
type Credential struct {
	UserID       string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
