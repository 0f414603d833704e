package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Receipt is the provenance reference returned by a ledger submission.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// Ledger abstracts the smart-contract backend. Submissions are fallible I/O;
// callers do not retry, duplicate-hash protection upstream makes client
// retries safe.
type Ledger interface {
	Submit(ctx context.Context, payload []byte) (*Receipt, error)
}

// MemoryLedger simulates the chain in-process: one transaction per block,
// keccak256 transaction hashes. It stands in for the external node in
// development and tests.
type MemoryLedger struct {
	mutex  sync.Mutex
	height uint64
	txs    map[string][]byte
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{txs: make(map[string][]byte)}
}

func (l *MemoryLedger) Submit(ctx context.Context, payload []byte) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "ledger submission aborted")
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.height++
	var block [8]byte
	binary.BigEndian.PutUint64(block[:], l.height)
	txHash := "0x" + hex.EncodeToString(crypto.Keccak256(block[:], payload))

	stored := make([]byte, len(payload))
	copy(stored, payload)
	l.txs[txHash] = stored

	return &Receipt{TxHash: txHash, BlockNumber: l.height}, nil
}

// Transaction returns the payload recorded under a transaction hash.
func (l *MemoryLedger) Transaction(txHash string) ([]byte, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	payload, ok := l.txs[txHash]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true
}

// Height reports the current block height.
func (l *MemoryLedger) Height() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.height
}
