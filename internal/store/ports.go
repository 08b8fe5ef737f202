// Package store declares the persistence ports used by the services. The
// memory, SQLite and MongoDB backends implement them.
package store

import (
	"context"
	"errors"

	"financas/internal/core"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Ports for persistence adapters.
type (
	// TransactionReader loads one user's transactions. Implementations return
	// them most recent first.
	TransactionReader interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	}

	// TransactionWriter persists transactions. Create assigns the id and the
	// timestamps; Update refreshes UpdatedAt and keeps CreatedAt and the owner.
	TransactionWriter interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	TransactionStore interface {
		TransactionReader
		TransactionWriter
	}

	// TransactionScanner walks every transaction of every user in batches.
	// The worker uses it to rebuild the spreadsheet mirror.
	TransactionScanner interface {
		ScanTransactions(ctx context.Context, batchSize int, fn func([]core.Transaction) error) error
	}

	// UserStore persists accounts. Emails are unique and compared lowercased.
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UserByID(ctx context.Context, id string) (core.User, error)
	}

	// Pinger reports whether the backend can serve requests.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
