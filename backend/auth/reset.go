package auth

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"finscholars/backend/utils"
)

const (
	resetPurpose  = "password_reset"
	resetTokenTTL = 30 * time.Minute
)

// ResetSender delivers a password reset token to an account's address.
type ResetSender interface {
	SendReset(ctx context.Context, email, token string) error
}

// logResetSender is used until a mail transport is configured. It never logs the token.
type logResetSender struct {
	log *utils.Logger
}

func (s logResetSender) SendReset(_ context.Context, email, _ string) error {
	s.log.Warn("password reset requested but no mail transport is configured", "email", email)
	return nil
}

func (m *Manager) WithResetSender(s ResetSender) *Manager {
	if s != nil {
		m.reset = s
	}
	return m
}

// ResetPassword sends a single-use reset token to email. Unknown addresses
// succeed silently so the reply does not reveal which accounts exist.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	userID, err := m.identity.LookupEmail(ctx, email)
	if errors.Is(err, ErrUnknownAccount) {
		m.log.Info("password reset for unknown address")
		return nil
	}
	if err != nil {
		return err
	}
	stamp, err := m.identity.PasswordStamp(ctx, userID)
	if err != nil {
		return err
	}
	token, err := utils.GeneratePurposeToken(userID, resetPurpose, stamp, m.secret, resetTokenTTL)
	if err != nil {
		return err
	}
	if err := m.reset.SendReset(ctx, normalizeEmail(email), token); err != nil {
		return err
	}
	m.log.Info("password reset sent", "user_id", userID)
	return nil
}

// ConfirmPasswordReset sets a new password. The token stops working once the
// password has changed, including through this call.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	userID, stamp, err := utils.ParsePurposeToken(token, resetPurpose, m.secret)
	if err != nil {
		return ErrInvalidToken
	}
	current, err := m.identity.PasswordStamp(ctx, userID)
	if errors.Is(err, ErrUnknownAccount) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if current != stamp {
		return ErrInvalidToken
	}
	if err := m.identity.UpdatePassword(ctx, userID, password); err != nil {
		return err
	}
	m.log.Info("password reset completed", "user_id", userID)
	return nil
}
