package contentstore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("content not found")

// Store is a content-addressed payload store. Put returns the CIDv0 string
// for the bytes; Get resolves it back. The production deployment points this
// interface at an IPFS node, the in-memory implementation serves everything
// else.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// MemoryStore addresses payloads by CIDv0 (sha2-256 multihash, base58),
// producing the same Qm… references an IPFS node would.
type MemoryStore struct {
	mutex   sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash content")
	}
	ref := cid.NewCidV0(mh).String()

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mutex.Lock()
	s.objects[ref] = stored
	s.mutex.Unlock()

	return ref, nil
}

func (s *MemoryStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if _, err := cid.Decode(ref); err != nil {
		return nil, errors.Wrapf(ErrNotFound, "undecodable content ref %q", ref)
	}

	s.mutex.RLock()
	data, ok := s.objects[ref]
	s.mutex.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "ref %s", ref)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
