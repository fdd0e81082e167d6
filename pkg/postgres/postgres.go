package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Majulish/cookie/pkg/db"
)

var _ db.Database = (*DB)(nil)

// DB provides database operations using PostgreSQL
type DB struct {
	pool    *pgxpool.Pool
	connStr string
	logger  *zap.Logger
}

// NewDB creates a new PostgreSQL database connection
func NewDB(ctx context.Context, connString string, logger *zap.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool, connStr: connString, logger: logger}, nil
}

// Close closes the database connection pool
func (d *DB) Close() {
	d.pool.Close()
}

// WithTx runs fn inside a read-committed transaction. Rows read with the
// ...ForUpdate methods stay locked until fn returns.
func (d *DB) WithTx(ctx context.Context, fn func(tx db.Tx) error) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore implements db.Tx on one open transaction
type txStore struct {
	tx pgx.Tx
}

var _ db.Tx = (*txStore)(nil)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isUniqueViolation(err error, constraint string) bool {
	return isViolation(err, uniqueViolation, constraint)
}

func isForeignKeyViolation(err error, constraint string) bool {
	return isViolation(err, foreignKeyViolation, constraint)
}

func isViolation(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code && pgErr.ConstraintName == constraint
}
