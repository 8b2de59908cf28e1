package dedupe

import (
	"context"
	"sync"
	"time"
)

// KeyStore is a set-like store used to suppress re-processing of already
// seen fingerprints across runs. It is a cheap short-circuit only: the
// database fingerprint constraint stays authoritative, so a stale or
// absent keystore never affects correctness.
type KeyStore interface {
	// Has reports whether key was seen before.
	Has(ctx context.Context, key string) (bool, error)

	// Add marks key as seen. ttl <= 0 means no expiry.
	Add(ctx context.Context, key string, ttl time.Duration) error
}

// MemoryKeyStore is an in-process keystore for single runs and tests.
// TTLs are ignored.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

var _ KeyStore = (*MemoryKeyStore)(nil)

// NewMemoryKeyStore creates an empty in-memory keystore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]struct{})}
}

func (s *MemoryKeyStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryKeyStore) Add(_ context.Context, key string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
	return nil
}
