package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antgonto/smart-contract/internal/contentstore"
	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/ledger"
	"github.com/antgonto/smart-contract/internal/roles"
	"github.com/antgonto/smart-contract/internal/store"
	"github.com/antgonto/smart-contract/pkg/audit"
	"github.com/antgonto/smart-contract/pkg/metrics"
)

const (
	adminAddr   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	issuerAddr  = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	studentAddr = "0xcccccccccccccccccccccccccccccccccccccccc"
	randomAddr  = "0xdddddddddddddddddddddddddddddddddddddddd"
)

type fixture struct {
	service *CertificateService
	sink    *audit.MemorySink
	ledger  *ledger.MemoryLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	chain := ledger.NewMemoryLedger()
	registry := roles.NewMemoryRegistry(chain, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, registry.Seed(ctx, adminAddr, models.RoleAdmin))
	require.NoError(t, registry.Seed(ctx, issuerAddr, models.RoleIssuer))

	sink := audit.NewMemorySink(100)
	service := NewCertificateService(
		registry,
		store.NewMemoryStore(),
		contentstore.NewMemoryStore(),
		chain,
		sink,
		metrics.NewCollector(),
		zap.NewNop(),
	)
	return &fixture{service: service, sink: sink, ledger: chain}
}

func TestRegisterOffChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("diploma-2024")

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, content, models.StorageOffChain)
	require.NoError(t, err)

	expected := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(expected[:]), cert.CertHash)
	assert.Equal(t, issuerAddr, cert.Issuer)
	assert.Equal(t, studentAddr, cert.Recipient)
	assert.NotEmpty(t, cert.IPFSHash)
	assert.Empty(t, cert.TxHash)

	result, err := f.service.Verify(ctx, cert.CertHash)
	require.NoError(t, err)
	assert.True(t, result.Exists)
	assert.Equal(t, issuerAddr, result.Issuer)
	assert.Equal(t, studentAddr, result.Recipient)
	assert.False(t, result.IsRevoked)
	assert.Equal(t, cert.IPFSHash, result.PayloadRef)
}

func TestRegisterOnChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, []byte("transcript"), models.StorageOnChain)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.TxHash)
	assert.NotZero(t, cert.BlockNumber)
	assert.Empty(t, cert.IPFSHash)

	_, ok := f.ledger.Transaction(cert.TxHash)
	assert.True(t, ok)
}

func TestRegisterDuplicateContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("diploma-2024")

	first, err := f.service.Register(ctx, issuerAddr, studentAddr, content, models.StorageOffChain)
	require.NoError(t, err)

	_, err = f.service.Register(ctx, issuerAddr, studentAddr, content, models.StorageOffChain)
	assert.ErrorIs(t, err, store.ErrDuplicateHash)

	// The original registration is untouched.
	result, err := f.service.Verify(ctx, first.CertHash)
	require.NoError(t, err)
	assert.True(t, result.Exists)
	assert.Equal(t, issuerAddr, result.Issuer)
}

func TestRegisterWithoutIssuerRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("forged")

	_, err := f.service.Register(ctx, randomAddr, studentAddr, content, models.StorageOffChain)
	assert.ErrorIs(t, err, ErrForbidden)

	// Nothing was created.
	sum := sha256.Sum256(content)
	result, err := f.service.Verify(ctx, hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.False(t, result.Exists)
}

func TestRegisterEmptyContent(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Register(context.Background(), issuerAddr, studentAddr, nil, models.StorageOffChain)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestVerifyUnknownHash(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Verify(context.Background(), "0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, result.Exists)
}

func TestRevokeByIssuerTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, []byte("diploma"), models.StorageOffChain)
	require.NoError(t, err)

	// Second revocation is absorbed as success.
	require.NoError(t, f.service.Revoke(ctx, cert.CertHash, issuerAddr))
	require.NoError(t, f.service.Revoke(ctx, cert.CertHash, issuerAddr))

	result, err := f.service.Verify(ctx, cert.CertHash)
	require.NoError(t, err)
	assert.True(t, result.IsRevoked)
}

func TestRevokeByAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, []byte("diploma"), models.StorageOffChain)
	require.NoError(t, err)

	require.NoError(t, f.service.Revoke(ctx, cert.CertHash, adminAddr))
}

func TestRevokeByStranger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, []byte("diploma"), models.StorageOffChain)
	require.NoError(t, err)

	err = f.service.Revoke(ctx, cert.CertHash, randomAddr)
	assert.ErrorIs(t, err, store.ErrForbidden)

	result, err := f.service.Verify(ctx, cert.CertHash)
	require.NoError(t, err)
	assert.False(t, result.IsRevoked)
}

func TestDownloadOffChainRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("diploma-2024")

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, content, models.StorageOffChain)
	require.NoError(t, err)

	data, ref, err := f.service.Download(ctx, cert.CertHash)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, cert.IPFSHash, ref)
}

func TestDownloadOnChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("transcript")

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, content, models.StorageOnChain)
	require.NoError(t, err)

	data, ref, err := f.service.Download(ctx, cert.CertHash)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, cert.TxHash, ref)
}

func TestDownloadUnknown(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.Download(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cert, err := f.service.Register(ctx, issuerAddr, studentAddr, []byte("diploma"), models.StorageOffChain)
	require.NoError(t, err)
	require.NoError(t, f.service.Revoke(ctx, cert.CertHash, issuerAddr))

	events := f.sink.Recent()
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionCertificateRegistered, events[0].Action)
	assert.Equal(t, audit.ActionCertificateRevoked, events[1].Action)
	assert.Equal(t, cert.CertHash, events[0].Subject)
}
