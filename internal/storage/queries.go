package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type TransactionRow struct {
	ID          string
	UserID      string
	Type        string
	AmountCents int64
	Description string
	Category    string
	OccurredAt  string
	CreatedAt   string
	UpdatedAt   string
}

type UserRow struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    string
}

const transactionColumns = `id, user_id, type, amount_cents, description, category, occurred_at, created_at, updated_at`

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID, arg.UserID, arg.Type, arg.AmountCents, arg.Description,
		arg.Category, arg.OccurredAt, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const updateTransaction = `-- name: UpdateTransaction :execrows
UPDATE transactions
SET type = ?, amount_cents = ?, description = ?, category = ?, occurred_at = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, arg TransactionRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Type, arg.AmountCents, arg.Description, arg.Category,
		arg.OccurredAt, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i TransactionRow
	err := scanTransaction(row, &i)
	return i, err
}

const listTransactionsByUser = `-- name: ListTransactionsByUser :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE user_id = ?
ORDER BY occurred_at DESC, created_at DESC, id`

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID string) ([]TransactionRow, error) {
	return q.queryTransactions(ctx, listTransactionsByUser, userID)
}

const listTransactionsAfter = `-- name: ListTransactionsAfter :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE id > ?
ORDER BY id
LIMIT ?`

func (q *Queries) ListTransactionsAfter(ctx context.Context, afterID string, limit int64) ([]TransactionRow, error) {
	return q.queryTransactions(ctx, listTransactionsAfter, afterID, limit)
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TransactionRow{}
	for rows.Next() {
		var i TransactionRow
		if err := scanTransaction(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner, i *TransactionRow) error {
	return s.Scan(
		&i.ID, &i.UserID, &i.Type, &i.AmountCents, &i.Description,
		&i.Category, &i.OccurredAt, &i.CreatedAt, &i.UpdatedAt,
	)
}

const insertUser = `-- name: InsertUser :exec
INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertUser(ctx context.Context, arg UserRow) error {
	_, err := q.db.ExecContext(ctx, insertUser, arg.ID, arg.Email, arg.PasswordHash, arg.CreatedAt)
	return err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, email, password_hash, created_at FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i UserRow
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, email, password_hash, created_at FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id string) (UserRow, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i UserRow
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}
