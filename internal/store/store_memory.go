package store

import (
	"context"
	"sync"
	"time"

	"github.com/antgonto/smart-contract/internal/utils"

	"github.com/antgonto/smart-contract/internal/db/models"
)

// MemoryStore keeps certificates in a mutex-guarded map plus an insertion
// order index for the listings. Put holds the write lock across the
// uniqueness check and the insert, so two concurrent registrations of the
// same hash cannot both succeed.
type MemoryStore struct {
	mutex        sync.RWMutex
	certificates map[string]*models.Certificate
	order        []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{certificates: make(map[string]*models.Certificate)}
}

func (s *MemoryStore) Put(ctx context.Context, cert *models.Certificate) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.certificates[cert.CertHash]; exists {
		return ErrDuplicateHash
	}

	stored := *cert
	s.certificates[cert.CertHash] = &stored
	s.order = append(s.order, cert.CertHash)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, certHash string) (*models.Certificate, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cert, exists := s.certificates[certHash]
	if !exists {
		return nil, ErrNotFound
	}
	out := *cert
	return &out, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, certHash, actor string, actorIsAdmin bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cert, exists := s.certificates[certHash]
	if !exists {
		return ErrNotFound
	}
	if !actorIsAdmin && !utils.SameAddress(cert.Issuer, actor) {
		return ErrForbidden
	}
	if cert.Revoked {
		return ErrAlreadyRevoked
	}

	now := time.Now()
	cert.Revoked = true
	cert.RevokedAt = &now
	return nil
}

func (s *MemoryStore) ListByIssuer(ctx context.Context, address string) ([]models.Certificate, error) {
	return s.list(func(c *models.Certificate) bool { return utils.SameAddress(c.Issuer, address) })
}

func (s *MemoryStore) ListByStudent(ctx context.Context, address string) ([]models.Certificate, error) {
	return s.list(func(c *models.Certificate) bool { return utils.SameAddress(c.Recipient, address) })
}

func (s *MemoryStore) list(match func(*models.Certificate) bool) ([]models.Certificate, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]models.Certificate, 0)
	for _, hash := range s.order {
		if cert := s.certificates[hash]; match(cert) {
			out = append(out, *cert)
		}
	}
	return out, nil
}
