package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrChallengeNotFound = errors.New("no challenge outstanding for address")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeConsumed = errors.New("challenge already consumed")
)

const nonceBytes = 32

type challenge struct {
	nonce    string
	issuedAt time.Time
	consumed bool
}

// ChallengeStore issues and consumes single-use login nonces, at most one
// outstanding per address. Issuing again replaces the previous challenge.
type ChallengeStore struct {
	challenges map[string]*challenge
	lifetime   time.Duration
	mutex      sync.Mutex
	logger     *zap.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
}

func NewChallengeStore(lifetime time.Duration, logger *zap.Logger) *ChallengeStore {
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	cs := &ChallengeStore{
		challenges: make(map[string]*challenge),
		lifetime:   lifetime,
		logger:     logger.With(zap.String("service", "challenge_store")),
		stopChan:   make(chan struct{}),
	}

	go cs.startBackgroundCleanup()

	return cs
}

// Issue creates a fresh random nonce for the address, invalidating any prior
// outstanding challenge. The nonce is returned for the wallet to sign.
func (cs *ChallengeStore) Issue(ctx context.Context, address string) (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	cs.mutex.Lock()
	cs.challenges[address] = &challenge{
		nonce:    nonce,
		issuedAt: time.Now(),
	}
	cs.mutex.Unlock()

	cs.logger.Debug("Challenge issued", zap.String("address", address))
	return nonce, nil
}

// Outstanding returns the current unconsumed, unexpired nonce for the
// address, for verifying a submitted signature before consuming it.
func (cs *ChallengeStore) Outstanding(ctx context.Context, address string) (string, error) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	ch, exists := cs.challenges[address]
	if !exists {
		return "", ErrChallengeNotFound
	}
	if ch.consumed {
		return "", ErrChallengeConsumed
	}
	if time.Since(ch.issuedAt) > cs.lifetime {
		return "", ErrChallengeExpired
	}
	return ch.nonce, nil
}

// Consume marks the outstanding challenge consumed iff it matches, is
// unconsumed and unexpired. A nonce mismatch has no side effects, so an
// attacker probing with stale nonces cannot invalidate the live one.
func (cs *ChallengeStore) Consume(ctx context.Context, address, nonce string) error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	ch, exists := cs.challenges[address]
	if !exists || ch.nonce != nonce {
		return ErrChallengeNotFound
	}
	if ch.consumed {
		return ErrChallengeConsumed
	}
	if time.Since(ch.issuedAt) > cs.lifetime {
		return ErrChallengeExpired
	}

	ch.consumed = true
	return nil
}

func (cs *ChallengeStore) startBackgroundCleanup() {
	ticker := time.NewTicker(cs.lifetime)
	defer ticker.Stop()

	for {
		select {
		case <-cs.stopChan:
			return
		case <-ticker.C:
			cs.cleanupExpired()
		}
	}
}

func (cs *ChallengeStore) cleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cutoff := time.Now().Add(-cs.lifetime)
	for address, ch := range cs.challenges {
		if ch.consumed || ch.issuedAt.Before(cutoff) {
			delete(cs.challenges, address)
		}
	}
}

func (cs *ChallengeStore) Stop() {
	cs.stopOnce.Do(func() { close(cs.stopChan) })
}
