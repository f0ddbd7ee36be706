package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a pgx connection pool with health checking.
type Pool struct {
	*pgxpool.Pool
}

// New creates a connection pool and verifies connectivity.
// Returns nil if the URL is empty (postgres not configured).
func New(ctx context.Context, databaseURL string) (*Pool, error) {
	if databaseURL == "" {
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Health checks if the database connection is healthy.
func (p *Pool) Health(ctx context.Context) error {
	return p.Ping(ctx)
}
