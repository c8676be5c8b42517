package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores documents as JSONB rows
type PostgresBackend struct {
	db *pgxpool.Pool
}

// NewPostgresBackend creates a new PostgreSQL backend
func NewPostgresBackend(db *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Migrate creates the nodes table if it does not exist
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_nodes (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := b.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create kv_nodes table: %w", err)
	}
	return nil
}

// Get retrieves a document by key
func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv_nodes WHERE key = $1`
	var data []byte
	err := b.db.QueryRow(ctx, query, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return data, nil
}

// Put inserts or replaces a document
func (b *PostgresBackend) Put(ctx context.Context, key string, value []byte) error {
	if _, err := b.db.Exec(ctx, upsertQuery, key, value); err != nil {
		return fmt.Errorf("failed to put node: %w", err)
	}
	return nil
}

const upsertQuery = `
	INSERT INTO kv_nodes (key, value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`

// Update serializes writers of one key with a transaction-scoped advisory lock,
// which also covers keys that have no row yet.
func (b *PostgresBackend) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock node: %w", err)
	}

	var current []byte
	err = tx.QueryRow(ctx, `SELECT value FROM kv_nodes WHERE key = $1`, key).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to get node: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, upsertQuery, key, next); err != nil {
		return fmt.Errorf("failed to put node: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
