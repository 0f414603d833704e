package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/utils"
)

// GormStore persists certificates in postgres. Uniqueness rides on the
// primary key, so concurrent registrations of the same hash serialize in the
// database rather than in process.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Put(ctx context.Context, cert *models.Certificate) error {
	err := s.db.WithContext(ctx).Create(cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateHash
		}
		return fmt.Errorf("failed to store certificate: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, certHash string) (*models.Certificate, error) {
	var cert models.Certificate
	err := s.db.WithContext(ctx).First(&cert, "cert_hash = ?", certHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	return &cert, nil
}

func (s *GormStore) Revoke(ctx context.Context, certHash, actor string, actorIsAdmin bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cert models.Certificate
		err := tx.First(&cert, "cert_hash = ?", certHash).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load certificate: %w", err)
		}
		if !actorIsAdmin && !utils.SameAddress(cert.Issuer, actor) {
			return ErrForbidden
		}
		if cert.Revoked {
			return ErrAlreadyRevoked
		}

		now := time.Now()
		return tx.Model(&cert).Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": &now,
		}).Error
	})
}

func (s *GormStore) ListByIssuer(ctx context.Context, address string) ([]models.Certificate, error) {
	return s.list(ctx, "issuer = ?", address)
}

func (s *GormStore) ListByStudent(ctx context.Context, address string) ([]models.Certificate, error) {
	return s.list(ctx, "recipient = ?", address)
}

func (s *GormStore) list(ctx context.Context, query, address string) ([]models.Certificate, error) {
	certificates := make([]models.Certificate, 0)
	err := s.db.WithContext(ctx).
		Where(query, address).
		Order("created_at").
		Find(&certificates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return certificates, nil
}
