package ledger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAdvancesBlocks(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	first, err := l.Submit(ctx, []byte("tx-1"))
	require.NoError(t, err)
	second, err := l.Submit(ctx, []byte("tx-2"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.BlockNumber)
	assert.Equal(t, uint64(2), second.BlockNumber)
	assert.Equal(t, uint64(2), l.Height())
}

func TestTxHashesAreDistinct(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	a, err := l.Submit(ctx, []byte("same payload"))
	require.NoError(t, err)
	b, err := l.Submit(ctx, []byte("same payload"))
	require.NoError(t, err)

	// Identical payloads land in different blocks, so the hashes differ.
	assert.NotEqual(t, a.TxHash, b.TxHash)
	assert.True(t, strings.HasPrefix(a.TxHash, "0x"))
	assert.Len(t, a.TxHash, 66)
}

func TestTransactionLookup(t *testing.T) {
	l := NewMemoryLedger()

	receipt, err := l.Submit(context.Background(), []byte("payload"))
	require.NoError(t, err)

	payload, ok := l.Transaction(receipt.TxHash)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), payload)

	_, ok = l.Transaction("0xmissing")
	assert.False(t, ok)
}

func TestSubmitHonorsContext(t *testing.T) {
	l := NewMemoryLedger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Submit(ctx, []byte("payload"))
	assert.Error(t, err)
}
