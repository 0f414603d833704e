package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/antgonto/smart-contract/internal/contentstore"
	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/ledger"
	"github.com/antgonto/smart-contract/internal/roles"
	"github.com/antgonto/smart-contract/internal/store"
	"github.com/antgonto/smart-contract/internal/utils"
	"github.com/antgonto/smart-contract/pkg/audit"
	"github.com/antgonto/smart-contract/pkg/metrics"
)

var (
	ErrForbidden    = errors.New("caller lacks the required role")
	ErrNotAvailable = errors.New("certificate payload not available")
	ErrEmptyContent = errors.New("certificate content is empty")
)

// VerificationResult is the public answer to a certificate lookup. An unknown
// hash is a negative result, not an error.
type VerificationResult struct {
	Exists      bool               `json:"exists"`
	CertHash    string             `json:"cert_hash"`
	Issuer      string             `json:"issuer,omitempty"`
	Recipient   string             `json:"recipient,omitempty"`
	IssuedAt    *time.Time         `json:"issued_at,omitempty"`
	IsRevoked   bool               `json:"is_revoked"`
	StorageMode models.StorageMode `json:"storage_mode,omitempty"`
	PayloadRef  string             `json:"payload_ref,omitempty"`
}

// CertificateService orchestrates registration, verification, revocation and
// download across the role registry, the certificate store, the ledger and
// the content-addressed payload store.
type CertificateService struct {
	registry roles.Registry
	certs    store.CertificateStore
	contents contentstore.Store
	chain    ledger.Ledger
	sink     audit.Sink
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewCertificateService(
	registry roles.Registry,
	certs store.CertificateStore,
	contents contentstore.Store,
	chain ledger.Ledger,
	sink audit.Sink,
	collector *metrics.Collector,
	logger *zap.Logger,
) *CertificateService {
	return &CertificateService{
		registry: registry,
		certs:    certs,
		contents: contents,
		chain:    chain,
		sink:     sink,
		metrics:  collector,
		logger:   logger.With(zap.String("service", "certificate_service")),
	}
}

// Register issues a certificate for recipient from the given content. The
// identifier is derived from the content, so resubmitting the same document
// is rejected as a duplicate rather than creating a second record.
func (cs *CertificateService) Register(ctx context.Context, issuer, recipient string, content []byte, mode models.StorageMode) (*models.Certificate, error) {
	if len(content) == 0 {
		return nil, ErrEmptyContent
	}

	issuerRoles, err := cs.registry.RolesOf(ctx, issuer)
	if err != nil {
		return nil, err
	}
	if !hasRole(issuerRoles, models.RoleIssuer) {
		return nil, ErrForbidden
	}

	certHash := utils.CertificateHash(content)
	cert := &models.Certificate{
		CertHash:    certHash,
		Issuer:      issuer,
		Recipient:   recipient,
		StorageMode: mode,
		IssuedAt:    time.Now(),
	}

	switch mode {
	case models.StorageOffChain:
		ref, err := cs.contents.Put(ctx, content)
		if err != nil {
			cs.logger.Error("Failed to store off-chain payload", zap.Error(err))
			return nil, ErrNotAvailable
		}
		cert.IPFSHash = ref
	case models.StorageOnChain:
		receipt, err := cs.chain.Submit(ctx, content)
		if err != nil {
			cs.logger.Error("Failed to submit certificate transaction", zap.Error(err))
			return nil, ErrNotAvailable
		}
		cert.Payload = content
		cert.BlockNumber = receipt.BlockNumber
		cert.TxHash = receipt.TxHash
	default:
		return nil, errors.New("unknown storage mode")
	}

	if err := cs.certs.Put(ctx, cert); err != nil {
		return nil, err
	}

	cs.metrics.IncrementCounter("certificates.registered", map[string]string{"mode": string(mode)})
	cs.sink.Emit(audit.Event{
		Action:    audit.ActionCertificateRegistered,
		Actor:     issuer,
		Subject:   certHash,
		Detail:    string(mode),
		Timestamp: time.Now(),
	})
	cs.logger.Info("Certificate registered",
		zap.String("cert_hash", certHash),
		zap.String("issuer", issuer),
		zap.String("recipient", recipient),
		zap.String("storage_mode", string(mode)))

	return cert, nil
}

// Verify is a pure lookup; it never mutates and never errors on absence.
func (cs *CertificateService) Verify(ctx context.Context, certHash string) (*VerificationResult, error) {
	cert, err := cs.certs.Get(ctx, certHash)
	if errors.Is(err, store.ErrNotFound) {
		return &VerificationResult{Exists: false, CertHash: certHash}, nil
	}
	if err != nil {
		return nil, err
	}

	issuedAt := cert.IssuedAt
	return &VerificationResult{
		Exists:      true,
		CertHash:    cert.CertHash,
		Issuer:      cert.Issuer,
		Recipient:   cert.Recipient,
		IssuedAt:    &issuedAt,
		IsRevoked:   cert.Revoked,
		StorageMode: cert.StorageMode,
		PayloadRef:  cert.PayloadRef(),
	}, nil
}

// Revoke flips the one-way revocation flag. Repeated revocation is absorbed
// as success; the store still reported it, so the audit trail has both.
func (cs *CertificateService) Revoke(ctx context.Context, certHash, actor string) error {
	actorRoles, err := cs.registry.RolesOf(ctx, actor)
	if err != nil {
		return err
	}

	err = cs.certs.Revoke(ctx, certHash, actor, hasRole(actorRoles, models.RoleAdmin))
	if errors.Is(err, store.ErrAlreadyRevoked) {
		cs.logger.Info("Certificate already revoked",
			zap.String("cert_hash", certHash),
			zap.String("actor", actor))
		return nil
	}
	if err != nil {
		return err
	}

	cs.metrics.IncrementCounter("certificates.revoked", nil)
	cs.sink.Emit(audit.Event{
		Action:    audit.ActionCertificateRevoked,
		Actor:     actor,
		Subject:   certHash,
		Timestamp: time.Now(),
	})
	cs.logger.Info("Certificate revoked",
		zap.String("cert_hash", certHash),
		zap.String("actor", actor))
	return nil
}

// Download resolves the certificate payload via its storage mode and returns
// the bytes with the payload reference.
func (cs *CertificateService) Download(ctx context.Context, certHash string) ([]byte, string, error) {
	cert, err := cs.certs.Get(ctx, certHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", store.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}

	switch cert.StorageMode {
	case models.StorageOffChain:
		data, err := cs.contents.Get(ctx, cert.IPFSHash)
		if err != nil {
			cs.logger.Warn("Off-chain payload unresolvable",
				zap.String("cert_hash", certHash),
				zap.String("ipfs_hash", cert.IPFSHash),
				zap.Error(err))
			return nil, "", ErrNotAvailable
		}
		return data, cert.IPFSHash, nil
	case models.StorageOnChain:
		if len(cert.Payload) == 0 {
			return nil, "", ErrNotAvailable
		}
		return cert.Payload, cert.TxHash, nil
	}
	return nil, "", ErrNotAvailable
}

// ListByIssuer and ListByStudent surface the store listings for the consoles.
func (cs *CertificateService) ListByIssuer(ctx context.Context, address string) ([]models.Certificate, error) {
	return cs.certs.ListByIssuer(ctx, address)
}

func (cs *CertificateService) ListByStudent(ctx context.Context, address string) ([]models.Certificate, error) {
	return cs.certs.ListByStudent(ctx, address)
}

func hasRole(held []models.Role, role models.Role) bool {
	for _, r := range held {
		if r == role {
			return true
		}
	}
	return false
}
