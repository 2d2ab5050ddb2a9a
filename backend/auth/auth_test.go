package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"finscholars/backend/sessions"
	"finscholars/backend/store"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

const testSecret = "test-secret"

func newManager(t *testing.T) (*Manager, *users.Manager, *sessions.Manager) {
	t.Helper()
	db, err := utils.OpenTestDB(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	st := store.New(db)
	log := utils.NewNopLogger()
	um := users.NewManager(st, nil, 30*time.Minute, log)
	sm := sessions.NewManager(um, 2*time.Hour, log)
	identity := NewLocalIdentity(st).WithCost(bcrypt.MinCost)
	return NewManager(identity, um, sm, testSecret, time.Hour, log), um, sm
}

func TestRegisterAndLogin(t *testing.T) {
	m, _, sm := newManager(t)
	ctx := context.Background()

	reg, err := m.Register(ctx, "Ann@Example.com", "hunter22", "Ann")
	require.NoError(t, err)
	assert.True(t, reg.IsNewUser)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "ann@example.com", reg.User.Email())
	assert.Equal(t, 1, sm.ActiveCount())

	login, err := m.Login(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID(), login.User.ID())
	assert.True(t, login.IsNewUser)
	assert.NotEqual(t, reg.SessionID, login.SessionID)

	require.NoError(t, login.User.UpdateInterests(ctx, []string{"stocks"}))
	again, err := m.Login(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	assert.False(t, again.IsNewUser)
}

func TestRegisterValidation(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "not-an-email", "hunter22", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = m.Register(ctx, "a@b.co", "123", "")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = m.Register(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)
	_, err = m.Register(ctx, "A@B.co", "hunter22", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Register(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)

	_, err = m.Login(ctx, "a@b.co", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login(ctx, "nobody@b.co", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	reg, err := m.Register(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)

	u, err := m.VerifyToken(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID(), u.ID())

	_, err = m.VerifyToken(ctx, reg.Token+"x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := utils.GenerateJWTToken(reg.User.ID(), "another-secret", time.Hour)
	require.NoError(t, err)
	_, err = m.VerifyToken(ctx, other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := utils.GenerateJWTToken(reg.User.ID(), testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = m.VerifyToken(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionLifecycle(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	reg, err := m.Register(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)

	u, err := m.UserFromSession(ctx, reg.SessionID)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID(), u.ID())
	assert.True(t, m.RefreshSession(reg.SessionID))

	assert.True(t, m.Logout(reg.SessionID))
	_, err = m.UserFromSession(ctx, reg.SessionID)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, m.RefreshSession(reg.SessionID))
}

func TestUpdatePassword(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	reg, err := m.Register(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)

	assert.ErrorIs(t, m.UpdatePassword(ctx, "missing", "newpass1"), ErrNoSession)
	assert.ErrorIs(t, m.UpdatePassword(ctx, reg.SessionID, "x"), ErrWeakPassword)
	require.NoError(t, m.UpdatePassword(ctx, reg.SessionID, "newpass1"))

	_, err = m.Login(ctx, "a@b.co", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login(ctx, "a@b.co", "newpass1")
	assert.NoError(t, err)
}

type captureSender struct {
	email string
	token string
	sent  int
}

func (s *captureSender) SendReset(_ context.Context, email, token string) error {
	s.email, s.token = email, token
	s.sent++
	return nil
}

func TestResetPassword(t *testing.T) {
	m, _, _ := newManager(t)
	sender := &captureSender{}
	m.WithResetSender(sender)
	ctx := context.Background()
	_, err := m.Register(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)

	assert.ErrorIs(t, m.ResetPassword(ctx, "not-an-email"), ErrInvalidEmail)
	require.NoError(t, m.ResetPassword(ctx, "nobody@b.co"))
	assert.Equal(t, 0, sender.sent, "unknown addresses get no mail")

	require.NoError(t, m.ResetPassword(ctx, "A@B.co"))
	require.Equal(t, 1, sender.sent)
	assert.Equal(t, "a@b.co", sender.email)
	token := sender.token

	_, err = m.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "reset tokens are not bearer tokens")

	assert.ErrorIs(t, m.ConfirmPasswordReset(ctx, token, "x"), ErrWeakPassword)
	assert.ErrorIs(t, m.ConfirmPasswordReset(ctx, token+"x", "newpass1"), ErrInvalidToken)
	require.NoError(t, m.ConfirmPasswordReset(ctx, token, "newpass1"))

	_, err = m.Login(ctx, "a@b.co", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login(ctx, "a@b.co", "newpass1")
	require.NoError(t, err)

	assert.ErrorIs(t, m.ConfirmPasswordReset(ctx, token, "another1"), ErrInvalidToken, "tokens are single use")
}

func TestResetPassword_TokenRevokedByPasswordChange(t *testing.T) {
	m, _, _ := newManager(t)
	sender := &captureSender{}
	m.WithResetSender(sender)
	ctx := context.Background()
	reg, err := m.Register(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)

	require.NoError(t, m.ResetPassword(ctx, "a@b.co"))
	require.NoError(t, m.UpdatePassword(ctx, reg.SessionID, "changed1"))
	assert.ErrorIs(t, m.ConfirmPasswordReset(ctx, sender.token, "newpass1"), ErrInvalidToken)

	bearer, err := utils.GeneratePurposeToken(reg.User.ID(), "other_purpose", "", testSecret, time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, m.ConfirmPasswordReset(ctx, bearer, "newpass1"), ErrInvalidToken)
	assert.ErrorIs(t, m.ConfirmPasswordReset(ctx, reg.Token, "newpass1"), ErrInvalidToken)
}
