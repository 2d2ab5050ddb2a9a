// Package auth signs users up and in, and turns bearer tokens and session ids
// back into users.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"finscholars/backend/sessions"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoSession          = errors.New("session not found")
	ErrUnknownAccount     = errors.New("no account matches")
)

const minPasswordLength = 6

// Result is what signup and login hand back to the client.
type Result struct {
	User      *users.User
	SessionID string
	Token     string
	IsNewUser bool
}

type Manager struct {
	identity IdentityProvider
	users    *users.Manager
	sessions *sessions.Manager
	secret   string
	tokenTTL time.Duration
	reset    ResetSender
	log      *utils.Logger
}

func NewManager(identity IdentityProvider, um *users.Manager, sm *sessions.Manager, secret string, tokenTTL time.Duration, log *utils.Logger) *Manager {
	m := &Manager{
		identity: identity,
		users:    um,
		sessions: sm,
		secret:   secret,
		tokenTTL: tokenTTL,
		log:      log.With("component", "auth"),
	}
	m.reset = logResetSender{log: m.log}
	return m
}

// Register creates the identity, the user record, a session and a token.
func (m *Manager) Register(ctx context.Context, email, password, displayName string) (*Result, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	userID, err := m.identity.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user, err := m.users.Create(ctx, userID, normalizeEmail(email), displayName)
	if err != nil {
		return nil, err
	}
	m.log.Info("user registered", "user_id", userID)
	return m.open(user, true)
}

// Login verifies credentials, records the login and opens a session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Result, error) {
	userID, err := m.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user, err := m.users.TouchLogin(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		// Credentials without a profile row: rebuild the profile.
		user, err = m.users.Create(ctx, userID, normalizeEmail(email), "")
	}
	if err != nil {
		return nil, err
	}
	return m.open(user, user.IsNew())
}

func (m *Manager) open(user *users.User, isNew bool) (*Result, error) {
	token, err := utils.GenerateJWTToken(user.ID(), m.secret, m.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Result{
		User:      user,
		SessionID: m.sessions.Create(user.ID()),
		Token:     token,
		IsNewUser: isNew,
	}, nil
}

func (m *Manager) Logout(sessionID string) bool {
	return m.sessions.End(sessionID)
}

// VerifyToken checks signature and expiry and loads the token's user.
func (m *Manager) VerifyToken(ctx context.Context, token string) (*users.User, error) {
	userID, err := utils.ParseJWTToken(token, m.secret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := m.users.Get(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	return user, err
}

func (m *Manager) UserFromSession(ctx context.Context, sessionID string) (*users.User, error) {
	user, err := m.sessions.Resolve(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, ErrNoSession
	}
	return user, err
}

// RefreshSession keeps a session alive; it reports whether the session exists.
func (m *Manager) RefreshSession(sessionID string) bool {
	_, ok := m.sessions.UserID(sessionID)
	return ok
}

// UpdatePassword changes the password of the session's user.
func (m *Manager) UpdatePassword(ctx context.Context, sessionID, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	userID, ok := m.sessions.UserID(sessionID)
	if !ok {
		return ErrNoSession
	}
	return m.identity.UpdatePassword(ctx, userID, password)
}
