// Package memory keeps transactions and users in process memory. It backs
// local development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"financas/internal/core"
	"financas/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	txs   map[string]core.Transaction
	users map[string]core.User
	now   func() time.Time
}

func New() *Store {
	return &Store{
		txs:   make(map[string]core.Transaction),
		users: make(map[string]core.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used in tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return tx, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if _, exists := s.txs[tx.ID]; exists {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrDuplicate)
	}
	now := s.now()
	tx.CreatedAt, tx.UpdatedAt = now, now
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.txs[tx.ID]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound)
	}
	tx.UserID = prev.UserID
	tx.CreatedAt = prev.CreatedAt
	tx.UpdatedAt = s.now()
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

// ScanTransactions visits every transaction ordered by id.
func (s *Store) ScanTransactions(ctx context.Context, batchSize int, fn func([]core.Transaction) error) error {
	if batchSize < 1 {
		batchSize = 100
	}
	s.mu.RLock()
	all := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		all = append(all, tx)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b core.Transaction) int { return strings.Compare(a.ID, b.ID) })
	for batch := range slices.Chunk(all, batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.User{}, fmt.Errorf("user %s: %w", u.Email, store.ErrDuplicate)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return u, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op; it lets the memory store share the backend cleanup path.
func (s *Store) Close() error { return nil }

// sortTransactions orders by date, most recent first, then by creation time.
func sortTransactions(txs []core.Transaction) {
	slices.SortFunc(txs, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
