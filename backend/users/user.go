// Package users keeps live user records and a time-boxed snapshot cache in front of the store.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"finscholars/backend/models"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrFocusActive     = errors.New("a focus session is already active")
	ErrNoFocusSession  = errors.New("no active focus session")
	ErrUnknownProgress = errors.New("module progress requires a module id")
)

// Store is the persistence a user record reads and writes through.
type Store interface {
	LoadUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	ReplaceInterests(ctx context.Context, userID string, interests []string) error
	UpsertUserModule(ctx context.Context, row *models.UserModule) error
	AddBadge(ctx context.Context, badge *models.UserBadge) (bool, error)
	CreateFocusSession(ctx context.Context, fs *models.FocusSession) error
	CloseFocusSession(ctx context.Context, id string, end time.Time, minutes float64) error
	SetFocusMode(ctx context.Context, userID string, active bool) error
	UpdateSettings(ctx context.Context, userID string, settings datatypes.JSON) error
}

// User is one live user record. All methods are safe for concurrent use; mutations
// write through to the store before changing in-memory state.
type User struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time

	state state
}

// state is everything a snapshot must carry to rebuild a User without a store read.
type state struct {
	ID              string              `json:"id"`
	Email           string              `json:"email"`
	DisplayName     string              `json:"display_name"`
	ProfileImageURL string              `json:"profile_image_url"`
	Interests       []string            `json:"interests"`
	Modules         []models.UserModule `json:"modules"`
	Badges          []Badge             `json:"badges"`
	FocusModeActive bool                `json:"focus_mode_active"`
	FocusSessions   []FocusSession      `json:"focus_sessions"`
	Settings        map[string]any      `json:"settings"`
	Progress        float64             `json:"progress_percentage"`
	CreatedAt       time.Time           `json:"created_at"`
	LastLogin       time.Time           `json:"last_login"`
}

type Badge struct {
	BadgeID     string    `json:"badge_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	EarnedAt    time.Time `json:"earned_at"`
}

type FocusSession struct {
	ID              string     `json:"id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes float64    `json:"duration_minutes"`
}

// Profile is the client-facing view of a user.
type Profile struct {
	ID              string              `json:"id"`
	Email           string              `json:"email"`
	DisplayName     string              `json:"display_name"`
	ProfileImageURL string              `json:"profile_image_url"`
	Interests       []string            `json:"interests"`
	Modules         []models.UserModule `json:"modules"`
	Badges          []Badge             `json:"badges"`
	Progress        float64             `json:"progress_percentage"`
	FocusModeActive bool                `json:"focus_mode_active"`
	FocusSessions   []FocusSession      `json:"focus_sessions"`
	Settings        map[string]any      `json:"settings"`
	CreatedAt       time.Time           `json:"created_at"`
	LastLogin       time.Time           `json:"last_login"`
}

const profileFocusSessions = 5

func newUser(st Store, now func() time.Time, s state) *User {
	u := &User{store: st, now: now, state: s}
	u.state.normalize()
	u.state.recomputeProgress()
	return u
}

func fromModel(m *models.User) state {
	s := state{
		ID:              m.ID,
		Email:           m.Email,
		DisplayName:     m.DisplayName,
		ProfileImageURL: m.ProfileImageURL,
		Modules:         append([]models.UserModule(nil), m.Modules...),
		FocusModeActive: m.FocusModeActive,
		CreatedAt:       m.CreatedAt,
		LastLogin:       m.LastLogin,
	}
	for _, i := range m.Interests {
		s.Interests = append(s.Interests, i.Interest)
	}
	for _, b := range m.Badges {
		s.Badges = append(s.Badges, Badge{BadgeID: b.BadgeID, Name: b.Name, Description: b.Description, EarnedAt: b.EarnedAt})
	}
	for _, f := range m.FocusSessions {
		s.FocusSessions = append(s.FocusSessions, FocusSession{
			ID: f.ID, StartTime: f.StartTime, EndTime: f.EndTime, DurationMinutes: f.DurationMinutes,
		})
	}
	if len(m.Settings) > 0 {
		_ = json.Unmarshal(m.Settings, &s.Settings)
	}
	return s
}

// normalize replaces nil collections so fresh loads and snapshots serialize the same way.
func (s *state) normalize() {
	if s.Interests == nil {
		s.Interests = []string{}
	}
	if s.Modules == nil {
		s.Modules = []models.UserModule{}
	}
	if s.Badges == nil {
		s.Badges = []Badge{}
	}
	if s.FocusSessions == nil {
		s.FocusSessions = []FocusSession{}
	}
	if s.Settings == nil {
		s.Settings = map[string]any{}
	}
}

// recomputeProgress sets progress to 100 * completed / total, 0 with no modules.
func (s *state) recomputeProgress() {
	if len(s.Modules) == 0 {
		s.Progress = 0
		return
	}
	completed := 0
	for _, m := range s.Modules {
		if m.Completed() {
			completed++
		}
	}
	s.Progress = math.Round(10000*float64(completed)/float64(len(s.Modules))) / 100
}

func (u *User) ID() string {
	return u.state.ID
}

func (u *User) Email() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state.Email
}

// IsNew reports a user with no interests and no modules yet.
func (u *User) IsNew() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.state.Interests) == 0 && len(u.state.Modules) == 0
}

func (u *User) Interests() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.state.Interests...)
}

func (u *User) Progress() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state.Progress
}

// ModuleProgress returns the user's row for moduleID.
func (u *User) ModuleProgress(moduleID string) (models.UserModule, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, m := range u.state.Modules {
		if m.ModuleID == moduleID {
			return m, true
		}
	}
	return models.UserModule{}, false
}

// Profile returns a copy safe to serialize; only the five most recent focus sessions are included.
func (u *User) Profile() Profile {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := u.state
	focus := s.FocusSessions
	if len(focus) > profileFocusSessions {
		focus = focus[:profileFocusSessions]
	}
	settings := make(map[string]any, len(s.Settings))
	for k, v := range s.Settings {
		settings[k] = v
	}
	return Profile{
		ID:              s.ID,
		Email:           s.Email,
		DisplayName:     s.DisplayName,
		ProfileImageURL: s.ProfileImageURL,
		Interests:       append([]string{}, s.Interests...),
		Modules:         append([]models.UserModule{}, s.Modules...),
		Badges:          append([]Badge{}, s.Badges...),
		Progress:        s.Progress,
		FocusModeActive: s.FocusModeActive,
		FocusSessions:   append([]FocusSession{}, focus...),
		Settings:        settings,
		CreatedAt:       s.CreatedAt,
		LastLogin:       s.LastLogin,
	}
}

func (u *User) snapshot() ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return json.Marshal(u.state)
}

func restore(st Store, now func() time.Time, data []byte) (*User, error) {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return newUser(st, now, s), nil
}

// UpdateInterests replaces the interest set. Blank and repeated entries are dropped.
func (u *User) UpdateInterests(ctx context.Context, interests []string) error {
	seen := make(map[string]bool, len(interests))
	clean := make([]string, 0, len(interests))
	for _, i := range interests {
		i = strings.TrimSpace(i)
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		clean = append(clean, i)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.store.ReplaceInterests(ctx, u.state.ID, clean); err != nil {
		return err
	}
	u.state.Interests = clean
	return nil
}

// UpdateModuleProgress upserts the row for row.ModuleID and recomputes progress.
func (u *User) UpdateModuleProgress(ctx context.Context, row models.UserModule) error {
	if row.ModuleID == "" {
		return ErrUnknownProgress
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	row.UserID = u.state.ID
	now := u.now()
	idx := -1
	for i, m := range u.state.Modules {
		if m.ModuleID == row.ModuleID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		prev := u.state.Modules[idx]
		row.CreatedAt = prev.CreatedAt
		if row.UnlockedAt == nil {
			row.UnlockedAt = prev.UnlockedAt
		}
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	if err := u.store.UpsertUserModule(ctx, &row); err != nil {
		return err
	}
	if idx >= 0 {
		u.state.Modules[idx] = row
	} else {
		u.state.Modules = append(u.state.Modules, row)
	}
	u.state.recomputeProgress()
	return nil
}

// AddBadge awards a badge once; it reports whether the badge is new.
func (u *User) AddBadge(ctx context.Context, badgeID, name, description string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, b := range u.state.Badges {
		if b.BadgeID == badgeID {
			return false, nil
		}
	}
	earned := u.now()
	added, err := u.store.AddBadge(ctx, &models.UserBadge{
		UserID: u.state.ID, BadgeID: badgeID, Name: name, Description: description, EarnedAt: earned,
	})
	if err != nil {
		return false, err
	}
	u.state.Badges = append(u.state.Badges, Badge{BadgeID: badgeID, Name: name, Description: description, EarnedAt: earned})
	return added, nil
}

func (u *User) StartFocusSession(ctx context.Context) (FocusSession, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state.FocusModeActive {
		return FocusSession{}, ErrFocusActive
	}
	fs := models.FocusSession{ID: uuid.NewString(), UserID: u.state.ID, StartTime: u.now()}
	if err := u.store.CreateFocusSession(ctx, &fs); err != nil {
		return FocusSession{}, err
	}
	if err := u.store.SetFocusMode(ctx, u.state.ID, true); err != nil {
		return FocusSession{}, err
	}

	session := FocusSession{ID: fs.ID, StartTime: fs.StartTime}
	u.state.FocusModeActive = true
	u.state.FocusSessions = append([]FocusSession{session}, u.state.FocusSessions...)
	return session, nil
}

// EndFocusSession closes sessionID, or the most recent open session when sessionID is empty.
func (u *User) EndFocusSession(ctx context.Context, sessionID string) (FocusSession, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	idx := -1
	for i, fs := range u.state.FocusSessions {
		if fs.EndTime != nil {
			continue
		}
		if sessionID == "" || fs.ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return FocusSession{}, ErrNoFocusSession
	}

	fs := u.state.FocusSessions[idx]
	end := u.now()
	minutes := math.Round(end.Sub(fs.StartTime).Minutes()*100) / 100
	if err := u.store.CloseFocusSession(ctx, fs.ID, end, minutes); err != nil {
		return FocusSession{}, err
	}
	if err := u.store.SetFocusMode(ctx, u.state.ID, false); err != nil {
		return FocusSession{}, err
	}

	fs.EndTime = &end
	fs.DurationMinutes = minutes
	u.state.FocusSessions[idx] = fs
	u.state.FocusModeActive = false
	return fs, nil
}

// UpdateSettings merges settings over the existing map.
func (u *User) UpdateSettings(ctx context.Context, settings map[string]any) (map[string]any, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	merged := make(map[string]any, len(u.state.Settings)+len(settings))
	for k, v := range u.state.Settings {
		merged[k] = v
	}
	for k, v := range settings {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if err := u.store.UpdateSettings(ctx, u.state.ID, datatypes.JSON(raw)); err != nil {
		return nil, err
	}
	u.state.Settings = merged

	out := make(map[string]any, len(merged))
	for k, v := range merged {
		out[k] = v
	}
	return out, nil
}

func (u *User) touchLogin(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	at := u.now()
	if err := u.store.TouchLastLogin(ctx, u.state.ID, at); err != nil {
		return err
	}
	u.state.LastLogin = at
	return nil
}
