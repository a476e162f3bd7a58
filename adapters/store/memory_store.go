package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

// MemoryStore is an in-memory implementation of the NonceStore interface
type MemoryStore struct {
	nonces map[int64]core.Nonce
	mu     sync.Mutex
	now    func() time.Time
}

// NewMemoryStore creates a new in-memory nonce store
func NewMemoryStore() ports.NonceStore {
	return &MemoryStore{
		nonces: make(map[int64]core.Nonce),
		now:    time.Now,
	}
}

// Put stores the nonce, overwriting an unconsumed one for the same user
func (s *MemoryStore) Put(ctx context.Context, nonce *core.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[nonce.UserID] = *nonce

	// Drop expired entries so abandoned nonces do not pile up
	now := s.now()
	for userID, n := range s.nonces {
		if !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt) {
			delete(s.nonces, userID)
		}
	}

	return nil
}

// Take removes the user's nonce and returns it
func (s *MemoryStore) Take(ctx context.Context, userID int64) (*core.Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, exists := s.nonces[userID]
	if !exists {
		return nil, core.ErrNonceNotFound
	}
	delete(s.nonces, userID)

	if !nonce.ExpiresAt.IsZero() && s.now().After(nonce.ExpiresAt) {
		return nil, core.ErrNonceNotFound
	}

	return &nonce, nil
}
