package repository

import (
	"context"
	"database/sql"
	"errors"
	"slices"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so that read helpers can be
// shared between plain and transactional methods.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction.  The transaction is committed when fn
// returns nil and rolled back otherwise; a commit failure is returned as is
// so callers can classify it with IsRetryable.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// Ensure rollback or commit at the end
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// lockRows takes row locks on the given ids of table in ascending order.
// lockClause is empty for SQLite, whose IMMEDIATE transactions already hold
// the database write lock.
func lockRows(ctx context.Context, tx *sql.Tx, table, lockClause string, ids []uint64) error {
	if lockClause == "" {
		return nil
	}
	for _, id := range sortedUnique(ids) {
		var got uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE id = ?`+lockClause, id).Scan(&got)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	return nil
}

func sortedUnique(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
