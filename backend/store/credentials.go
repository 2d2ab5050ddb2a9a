package store

import (
	"context"

	"finscholars/backend/models"
)

func (s *Store) CreateCredential(ctx context.Context, cred *models.Credential) error {
	return translate(s.db.WithContext(ctx).Create(cred).Error)
}

func (s *Store) CredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&cred).Error; err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

func (s *Store) CredentialByUser(ctx context.Context, userID string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&cred).Error; err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.Credential{}).Where("user_id = ?", userID).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
