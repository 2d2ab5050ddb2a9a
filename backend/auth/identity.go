package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"finscholars/backend/models"
	"finscholars/backend/store"
)

// IdentityProvider owns credentials. SignUp and SignIn return the user id.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	UpdatePassword(ctx context.Context, userID, password string) error
	// LookupEmail returns the user id registered for email, or ErrUnknownAccount.
	LookupEmail(ctx context.Context, email string) (string, error)
	// PasswordStamp changes whenever the user's password does.
	PasswordStamp(ctx context.Context, userID string) (string, error)
}

type CredentialStore interface {
	CreateCredential(ctx context.Context, cred *models.Credential) error
	CredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
	CredentialByUser(ctx context.Context, userID string) (*models.Credential, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// LocalIdentity keeps bcrypt hashes in the credentials table.
type LocalIdentity struct {
	store CredentialStore
	cost  int
}

func NewLocalIdentity(st CredentialStore) *LocalIdentity {
	return &LocalIdentity{store: st, cost: bcrypt.DefaultCost}
}

// WithCost lowers the bcrypt cost, for tests.
func (l *LocalIdentity) WithCost(cost int) *LocalIdentity {
	l.cost = cost
	return l
}

func (l *LocalIdentity) SignUp(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return "", err
	}
	cred := &models.Credential{UserID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	if err := l.store.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrEmailTaken
		}
		return "", err
	}
	return cred.UserID, nil
}

func (l *LocalIdentity) SignIn(ctx context.Context, email, password string) (string, error) {
	cred, err := l.store.CredentialByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return cred.UserID, nil
}

func (l *LocalIdentity) UpdatePassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return err
	}
	return l.store.UpdatePasswordHash(ctx, userID, string(hash))
}

func (l *LocalIdentity) LookupEmail(ctx context.Context, email string) (string, error) {
	cred, err := l.store.CredentialByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUnknownAccount
	}
	if err != nil {
		return "", err
	}
	return cred.UserID, nil
}

func (l *LocalIdentity) PasswordStamp(ctx context.Context, userID string) (string, error) {
	cred, err := l.store.CredentialByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUnknownAccount
	}
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(cred.PasswordHash))
	return hex.EncodeToString(sum[:8]), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
