package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAddress = "0x1111111111111111111111111111111111111111"

func newTestStore(t *testing.T, lifetime time.Duration) *ChallengeStore {
	t.Helper()
	cs := NewChallengeStore(lifetime, zap.NewNop())
	t.Cleanup(cs.Stop)
	return cs
}

func TestIssueAndConsume(t *testing.T) {
	cs := newTestStore(t, time.Minute)
	ctx := context.Background()

	nonce, err := cs.Issue(ctx, testAddress)
	require.NoError(t, err)
	assert.Len(t, nonce, nonceBytes*2)

	require.NoError(t, cs.Consume(ctx, testAddress, nonce))
}

func TestConsumeIsSingleUse(t *testing.T) {
	cs := newTestStore(t, time.Minute)
	ctx := context.Background()

	nonce, err := cs.Issue(ctx, testAddress)
	require.NoError(t, err)

	require.NoError(t, cs.Consume(ctx, testAddress, nonce))
	assert.ErrorIs(t, cs.Consume(ctx, testAddress, nonce), ErrChallengeConsumed)
}

func TestReissueInvalidatesPrevious(t *testing.T) {
	cs := newTestStore(t, time.Minute)
	ctx := context.Background()

	first, err := cs.Issue(ctx, testAddress)
	require.NoError(t, err)
	second, err := cs.Issue(ctx, testAddress)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, cs.Consume(ctx, testAddress, first), ErrChallengeNotFound)
	assert.NoError(t, cs.Consume(ctx, testAddress, second))
}

func TestConsumeUnknownAddress(t *testing.T) {
	cs := newTestStore(t, time.Minute)

	err := cs.Consume(context.Background(), testAddress, "deadbeef")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestMismatchHasNoSideEffect(t *testing.T) {
	cs := newTestStore(t, time.Minute)
	ctx := context.Background()

	nonce, err := cs.Issue(ctx, testAddress)
	require.NoError(t, err)

	assert.ErrorIs(t, cs.Consume(ctx, testAddress, "wrong"), ErrChallengeNotFound)
	assert.NoError(t, cs.Consume(ctx, testAddress, nonce))
}

func TestExpiry(t *testing.T) {
	cs := newTestStore(t, 10*time.Millisecond)
	ctx := context.Background()

	nonce, err := cs.Issue(ctx, testAddress)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	assert.ErrorIs(t, cs.Consume(ctx, testAddress, nonce), ErrChallengeExpired)
}

func TestOutstanding(t *testing.T) {
	cs := newTestStore(t, time.Minute)
	ctx := context.Background()

	_, err := cs.Outstanding(ctx, testAddress)
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	nonce, err := cs.Issue(ctx, testAddress)
	require.NoError(t, err)

	got, err := cs.Outstanding(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, nonce, got)

	require.NoError(t, cs.Consume(ctx, testAddress, nonce))
	_, err = cs.Outstanding(ctx, testAddress)
	assert.ErrorIs(t, err, ErrChallengeConsumed)
}

func TestConcurrentIssueLeavesOneChallenge(t *testing.T) {
	cs := newTestStore(t, time.Minute)
	ctx := context.Background()

	done := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			nonce, err := cs.Issue(ctx, testAddress)
			require.NoError(t, err)
			done <- nonce
		}()
	}
	a, b := <-done, <-done

	survivor, err := cs.Outstanding(ctx, testAddress)
	require.NoError(t, err)
	assert.Contains(t, []string{a, b}, survivor)

	consumed := 0
	for _, nonce := range []string{a, b} {
		if cs.Consume(ctx, testAddress, nonce) == nil {
			consumed++
		}
	}
	assert.Equal(t, 1, consumed)
}
