package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/ledger"
)

const (
	adminAddr   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	issuerAddr  = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	studentAddr = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func newTestRegistry(t *testing.T) *MemoryRegistry {
	t.Helper()
	r := NewMemoryRegistry(ledger.NewMemoryLedger(), zap.NewNop())
	require.NoError(t, r.Seed(context.Background(), adminAddr, models.RoleAdmin))
	return r
}

func TestGrantAndRolesOf(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	receipt, err := r.Grant(ctx, adminAddr, issuerAddr, models.RoleIssuer)
	require.NoError(t, err)
	assert.False(t, receipt.NoOp)
	assert.NotEmpty(t, receipt.ID)
	assert.NotEmpty(t, receipt.TxHash)

	held, err := r.RolesOf(ctx, issuerAddr)
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleIssuer}, held)
}

func TestGrantIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Grant(ctx, adminAddr, issuerAddr, models.RoleIssuer)
	require.NoError(t, err)

	receipt, err := r.Grant(ctx, adminAddr, issuerAddr, models.RoleIssuer)
	require.NoError(t, err)
	assert.True(t, receipt.NoOp)
	assert.Empty(t, receipt.TxHash)
}

func TestRevokeUnheldIsNoOp(t *testing.T) {
	r := newTestRegistry(t)

	receipt, err := r.Revoke(context.Background(), adminAddr, studentAddr, models.RoleStudent)
	require.NoError(t, err)
	assert.True(t, receipt.NoOp)
}

func TestRevokeRemovesEmptyRecord(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Grant(ctx, adminAddr, studentAddr, models.RoleStudent)
	require.NoError(t, err)

	receipt, err := r.Revoke(ctx, adminAddr, studentAddr, models.RoleStudent)
	require.NoError(t, err)
	assert.False(t, receipt.NoOp)

	held, err := r.RolesOf(ctx, studentAddr)
	require.NoError(t, err)
	assert.Empty(t, held)

	// With zero roles the address is indistinguishable from unknown.
	r.mutex.RLock()
	_, exists := r.assignments[studentAddr]
	r.mutex.RUnlock()
	assert.False(t, exists)
}

func TestNonAdminCannotGrant(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Grant(context.Background(), issuerAddr, studentAddr, models.RoleStudent)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminRoleIsNotGrantable(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Grant(ctx, adminAddr, issuerAddr, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleNotGrantable)

	_, err = r.Revoke(ctx, adminAddr, adminAddr, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleNotGrantable)
}

func TestUnknownAddressHasEmptyRoleSet(t *testing.T) {
	r := newTestRegistry(t)

	held, err := r.RolesOf(context.Background(), "0xdddddddddddddddddddddddddddddddddddddddd")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestMultipleRoles(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Grant(ctx, adminAddr, issuerAddr, models.RoleIssuer)
	require.NoError(t, err)
	_, err = r.Grant(ctx, adminAddr, issuerAddr, models.RoleStudent)
	require.NoError(t, err)

	held, err := r.RolesOf(ctx, issuerAddr)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Role{models.RoleIssuer, models.RoleStudent}, held)
}
