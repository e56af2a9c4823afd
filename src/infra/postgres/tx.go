package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so repository helpers
// run the same SQL inside or outside a transaction scope.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxMode is configured once per operation kind.
type TxMode struct {
	options pgx.TxOptions
}

var (
	ReadOnly  = TxMode{options: pgx.TxOptions{AccessMode: pgx.ReadOnly}}
	ReadWrite = TxMode{options: pgx.TxOptions{AccessMode: pgx.ReadWrite, IsoLevel: pgx.ReadCommitted}}
)

// WithTx runs fn inside one transaction: commit when fn returns nil, rollback otherwise.
func WithTx(ctx context.Context, pool *pgxpool.Pool, mode TxMode, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, mode.options)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
