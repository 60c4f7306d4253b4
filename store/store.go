package store

import (
	"context"
	_ "embed"
	"fmt"

	kitlog "github.com/go-kit/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the connection pool shared by CacheStore and AuditStore.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pgxpool against dsn. The pool is not usable until Ping
// succeeds, matching the teacher's connect-then-verify sequencing.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Bootstrap applies the embedded schema, creating tables/indexes if absent.
// Schema bootstrap is a named collaborator, not a request-processing
// concern (spec.md §1 Out of scope); cmd/serve calls it explicitly at
// startup.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	return nil
}

// Ping checks the pool is reachable, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Cache returns a CacheStore bound to this pool.
func (s *Store) Cache() *CacheStore {
	return &CacheStore{pool: s.pool}
}

// Audit returns an AuditStore bound to this pool, logging any write failure
// through logger.
func (s *Store) Audit(logger kitlog.Logger) *AuditStore {
	return &AuditStore{pool: s.pool, Logger: logger}
}
