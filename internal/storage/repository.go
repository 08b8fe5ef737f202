package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"financas/internal/core"
	"financas/internal/store"
)

// timeLayout sorts lexically in chronological order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return toTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toTransaction(row)
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := r.now()
	tx.CreatedAt, tx.UpdatedAt = now, now

	if err := r.queries.InsertTransaction(ctx, fromTransaction(tx)); err != nil {
		if isUniqueViolation(err) {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrDuplicate)
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"amount", tx.Amount.String())
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	prev, err := r.GetTransaction(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.UserID = prev.UserID
	tx.CreatedAt = prev.CreatedAt
	tx.UpdatedAt = r.now()

	n, err := r.queries.UpdateTransaction(ctx, fromTransaction(tx))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound)
	}
	return tx, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ScanTransactions pages through every transaction by id.
func (r *SQLiteRepository) ScanTransactions(ctx context.Context, batchSize int, fn func([]core.Transaction) error) error {
	if batchSize < 1 {
		batchSize = 100
	}
	after := ""
	for {
		rows, err := r.queries.ListTransactionsAfter(ctx, after, int64(batchSize))
		if err != nil {
			return fmt.Errorf("scan transactions: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		batch, err := toTransactions(rows)
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(rows) < batchSize {
			return nil
		}
		after = rows[len(rows)-1].ID
	}
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = r.now()

	err := r.queries.InsertUser(ctx, UserRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.Format(timeLayout),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("user %s: %w", u.Email, store.ErrDuplicate)
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row, err := r.queries.GetUserByEmail(ctx, email)
	return r.toUser(row, err, email)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	row, err := r.queries.GetUserByID(ctx, id)
	return r.toUser(row, err, id)
}

func (r *SQLiteRepository) toUser(row UserRow, err error, key string) (core.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	return core.User{ID: row.ID, Email: row.Email, PasswordHash: row.PasswordHash, CreatedAt: created}, nil
}

func fromTransaction(tx core.Transaction) TransactionRow {
	return TransactionRow{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		AmountCents: tx.Amount.Shift(2).Round(0).IntPart(),
		Description: tx.Description,
		Category:    tx.Category,
		OccurredAt:  tx.Date.UTC().Format(timeLayout),
		CreatedAt:   tx.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   tx.UpdatedAt.UTC().Format(timeLayout),
	}
}

func toTransaction(row TransactionRow) (core.Transaction, error) {
	var (
		times [3]time.Time
		err   error
	)
	for i, s := range []string{row.OccurredAt, row.CreatedAt, row.UpdatedAt} {
		if times[i], err = time.Parse(timeLayout, s); err != nil {
			return core.Transaction{}, fmt.Errorf("parse transaction %s timestamp: %w", row.ID, err)
		}
	}
	return core.Transaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Type:        core.TransactionType(row.Type),
		Amount:      decimal.New(row.AmountCents, -2),
		Description: row.Description,
		Category:    row.Category,
		Date:        times[0],
		CreatedAt:   times[1],
		UpdatedAt:   times[2],
	}, nil
}

func toTransactions(rows []TransactionRow) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
