package cache

import (
	"slices"
	"sync"
	"time"

	"financas/internal/core"
)

// Snapshots caches each user's full transaction list. Writes through the
// service invalidate the owner's entry, so readers never observe a list older
// than their own last write.
//
// Every invalidation bumps the user's generation. A reader captures the
// generation before it reads the store and hands it back to Put, which drops
// the list if a write landed in between.
type Snapshots struct {
	lru *LRUCache[[]core.Transaction]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewSnapshots(maxUsers int, ttl time.Duration) *Snapshots {
	return &Snapshots{
		lru:  NewLRUCache[[]core.Transaction](maxUsers, ttl),
		gens: make(map[string]uint64),
	}
}

// Get returns a copy of the cached list so callers may sort or filter it.
func (s *Snapshots) Get(userID string) ([]core.Transaction, bool) {
	txs, ok := s.lru.Get(userID)
	if !ok {
		return nil, false
	}
	return slices.Clone(txs), true
}

// Generation returns the user's current invalidation count.
func (s *Snapshots) Generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// Put stores txs unless the user was invalidated after gen was read. It
// reports whether the list was stored.
func (s *Snapshots) Put(userID string, gen uint64, txs []core.Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] != gen {
		return false
	}
	s.lru.Set(userID, slices.Clone(txs))
	return true
}

func (s *Snapshots) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	s.lru.Delete(userID)
}

func (s *Snapshots) CleanExpired() int {
	return s.lru.CleanExpired()
}

func (s *Snapshots) Size() int {
	return s.lru.Size()
}
