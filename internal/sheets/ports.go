package sheets

import (
	"context"

	"financas/internal/core"
)

// Ports for the spreadsheet mirror.
type (
	// TransactionMirror keeps one row per transaction, keyed by id.
	TransactionMirror interface {
		UpsertTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	// RowLister returns the ids currently present in the mirror. Reconciliation
	// uses it to remove rows whose transaction no longer exists.
	RowLister interface {
		ListTransactionIDs(ctx context.Context) ([]string, error)
	}

	Mirror interface {
		TransactionMirror
		RowLister
	}
)
