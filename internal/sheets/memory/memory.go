// Package memory is an in-process TransactionMirror. The worker falls back to
// it when no spreadsheet is configured, and tests use it as a fake.
package memory

import (
	"context"
	"slices"
	"sync"

	"financas/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows map[string]core.Transaction
}

func New() *Store {
	return &Store{rows: make(map[string]core.Transaction)}
}

// UpsertTransaction replaces the row for tx.ID.
func (s *Store) UpsertTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tx.ID] = tx
	return nil
}

// DeleteTransaction removes the row. Missing rows are not an error.
func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// ListTransactionIDs returns the mirrored ids in ascending order.
func (s *Store) ListTransactionIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Row returns the mirrored transaction for id.
func (s *Store) Row(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.rows[id]
	return tx, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
