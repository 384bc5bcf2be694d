package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Executor is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Every repository method takes one explicitly, so the same call can run
// standalone or folded into a larger atomic operation.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the connection pool and runs transactions.
type DB struct {
	raw *sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{raw: db}
}

// Executor returns the pool itself for non-transactional calls.
func (d *DB) Executor() Executor {
	return d.raw
}

// Transact runs fn inside one transaction. Any error (or panic) rolls the
// whole transaction back.
func (d *DB) Transact(ctx context.Context, fn func(ex Executor) error) error {
	tx, err := d.raw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, the guard behind at-most-one payout per payment.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
