package store

import (
	"context"
	"errors"

	"github.com/antgonto/smart-contract/internal/db/models"
)

var (
	ErrDuplicateHash  = errors.New("certificate hash already registered")
	ErrNotFound       = errors.New("certificate not found")
	ErrForbidden      = errors.New("actor may not revoke this certificate")
	ErrAlreadyRevoked = errors.New("certificate already revoked")
)

// CertificateStore is the record store keyed by certificate hash. Put is
// atomic with respect to the uniqueness check; Revoke enforces the
// issuer-or-admin rule and surfaces repeated revocation distinctly so callers
// can absorb it while the audit trail still sees it.
type CertificateStore interface {
	Put(ctx context.Context, cert *models.Certificate) error
	Get(ctx context.Context, certHash string) (*models.Certificate, error)
	Revoke(ctx context.Context, certHash, actor string, actorIsAdmin bool) error
	ListByIssuer(ctx context.Context, address string) ([]models.Certificate, error)
	ListByStudent(ctx context.Context, address string) ([]models.Certificate, error)
}
