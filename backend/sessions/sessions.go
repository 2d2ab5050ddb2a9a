// Package sessions maps opaque session ids to users. Expiry is housekeeping: an
// expired session keeps resolving until the next sweep removes it.
package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"finscholars/backend/metrics"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

var ErrNotFound = errors.New("session not found")

// UserSource resolves a user id to its live record.
type UserSource interface {
	Get(ctx context.Context, userID string) (*users.User, error)
}

type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

type Manager struct {
	users UserSource
	ttl   time.Duration
	now   func() time.Time
	log   *utils.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(src UserSource, ttl time.Duration, log *utils.Logger) *Manager {
	return &Manager{
		users:    src,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With("component", "sessions"),
		sessions: make(map[string]*Session),
	}
}

// SetClock replaces time.Now, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Create opens a session for userID and returns its id.
func (m *Manager) Create(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := uuid.NewString()
	m.sessions[id] = &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.ttl),
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return id
}

// Resolve returns the session's user and pushes its expiry out by the session window.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (*users.User, error) {
	userID, ok := m.touch(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	return m.users.Get(ctx, userID)
}

// UserID is Resolve without loading the user.
func (m *Manager) UserID(sessionID string) (string, bool) {
	return m.touch(sessionID)
}

func (m *Manager) touch(sessionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false
	}
	now := m.now()
	s.LastActivity = now
	s.ExpiresAt = now.Add(m.ttl)
	return s.UserID, true
}

// End deletes the session. The user record is left untouched.
func (m *Manager) End(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return true
}

// SweepExpired removes every session past its expiry.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	if removed > 0 {
		m.log.Debug("swept expired sessions", "count", removed)
	}
	return removed
}

func (m *Manager) UpdateMetadata(sessionID, ip, userAgent string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	if ip != "" {
		s.IPAddress = ip
	}
	if userAgent != "" {
		s.UserAgent = userAgent
	}
	return true
}

// UserSessions lists the user's sessions, newest first.
func (m *Manager) UserSessions(userID string) []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Manager) Get(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
