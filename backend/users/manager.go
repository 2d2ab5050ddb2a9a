package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finscholars/backend/metrics"
	"finscholars/backend/models"
	"finscholars/backend/store"
	"finscholars/backend/utils"
)

// Manager owns the live user records. Get serves a live record, then a valid
// snapshot, and only then reads the store; concurrent first loads of the same
// user share one read.
type Manager struct {
	store     Store
	snapshots SnapshotStore
	ttl       time.Duration
	log       *utils.Logger
	now       func() time.Time

	mu    sync.RWMutex
	live  map[string]*User
	loads singleflight.Group
}

const sharedLoadTimeout = 30 * time.Second

type ManagerOption func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(st Store, snapshots SnapshotStore, ttl time.Duration, log *utils.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     st,
		snapshots: snapshots,
		ttl:       ttl,
		log:       log.With("component", "users"),
		now:       time.Now,
		live:      make(map[string]*User),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.snapshots == nil {
		m.snapshots = NewMemorySnapshots(m.now)
	}
	return m
}

// Get returns the user and refreshes its snapshot expiry.
func (m *Manager) Get(ctx context.Context, userID string) (*User, error) {
	u, err := m.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.SaveToCache(ctx, u)
	return u, nil
}

func (m *Manager) get(ctx context.Context, userID string) (*User, error) {
	if u := m.lookup(userID); u != nil {
		return u, nil
	}

	v, err, _ := m.loads.Do(userID, func() (interface{}, error) {
		if u := m.lookup(userID); u != nil {
			return u, nil
		}
		// Callers waiting on this load must not fail because the first one went away.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		u, err := m.fromSnapshot(ctx, userID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			row, err := m.store.LoadUser(ctx, userID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrNotFound
			}
			if err != nil {
				return nil, err
			}
			u = newUser(m.store, m.now, fromModel(row))
		}
		m.keep(u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

func (m *Manager) fromSnapshot(ctx context.Context, userID string) (*User, error) {
	data, ok, err := m.snapshots.Get(ctx, userID)
	if err != nil {
		m.log.Warn("snapshot read failed, loading from store", "user_id", userID, "error", err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	u, err := restore(m.store, m.now, data)
	if err != nil {
		m.log.Warn("discarding unreadable snapshot", "user_id", userID, "error", err)
		_ = m.snapshots.Delete(ctx, userID)
		return nil, nil
	}
	return u, nil
}

func (m *Manager) lookup(userID string) *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live[userID]
}

func (m *Manager) keep(u *User) {
	m.mu.Lock()
	m.live[u.ID()] = u
	n := len(m.live)
	m.mu.Unlock()
	metrics.CachedUsers.Set(float64(n))
}

// Create inserts a user row and caches the record. An existing id is treated as a
// returning user: its last login is refreshed and the stored record is returned.
func (m *Manager) Create(ctx context.Context, userID, email, displayName string) (*User, error) {
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	now := m.now()
	row := &models.User{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
		Settings:    []byte(`{}`),
		CreatedAt:   now,
		LastLogin:   now,
	}

	err := m.store.CreateUser(ctx, row)
	if errors.Is(err, store.ErrDuplicate) {
		u, err := m.get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := u.touchLogin(ctx); err != nil {
			return nil, err
		}
		m.SaveToCache(ctx, u)
		return u, nil
	}
	if err != nil {
		return nil, err
	}

	u := newUser(m.store, m.now, fromModel(row))
	m.keep(u)
	m.SaveToCache(ctx, u)
	return u, nil
}

// TouchLogin records a login for the user.
func (m *Manager) TouchLogin(ctx context.Context, userID string) (*User, error) {
	u, err := m.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.touchLogin(ctx); err != nil {
		return nil, err
	}
	m.SaveToCache(ctx, u)
	return u, nil
}

// SaveToCache re-snapshots u with a fresh expiry. Failures are logged, not returned.
func (m *Manager) SaveToCache(ctx context.Context, u *User) {
	data, err := u.snapshot()
	if err == nil {
		err = m.snapshots.Put(ctx, u.ID(), data, m.ttl)
	}
	if err != nil {
		m.log.Warn("failed to cache user snapshot", "user_id", u.ID(), "error", err)
	}
}

// EvictExpired removes expired snapshots. Live records stay.
func (m *Manager) EvictExpired(ctx context.Context) (int, error) {
	n, err := m.snapshots.EvictExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Debug("evicted expired user snapshots", "count", n)
	}
	return n, nil
}

// Remove drops both the live record and its snapshot.
func (m *Manager) Remove(ctx context.Context, userID string) error {
	m.mu.Lock()
	delete(m.live, userID)
	n := len(m.live)
	m.mu.Unlock()
	metrics.CachedUsers.Set(float64(n))
	return m.snapshots.Delete(ctx, userID)
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}
