// Package postgres implements the repository interfaces on top of the hosted
// PostgreSQL instance using pgx/v5.
//
// WHY pgx INSTEAD OF database/sql + lib/pq?
// pgx speaks the Postgres wire protocol natively, exposes *pgconn.PgError with
// the server's detail message (which the profile update surfaces to the user)
// and ships a real connection pool (pgxpool).
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"
)

const defaultRetries = 5

// Init parses the connection URL and creates the pool.
//
// Every new connection registers the google/uuid codec so UUID columns scan
// straight into uuid.UUID.
func Init(ctx context.Context, connectionURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("initializing database connection pool")

	cfg, err := pgxpool.ParseConfig(connectionURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if !WaitForDB(ctx, pool, logger) {
		pool.Close()
		return nil, fmt.Errorf("postgres: database unreachable after %d attempts", defaultRetries)
	}

	return pool, nil
}

// WaitForDB pings the pool with a linear backoff. It reports whether a ping
// eventually succeeded.
func WaitForDB(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) bool {
	for attempt := 1; attempt <= defaultRetries; attempt++ {
		err := pool.Ping(ctx)
		if err == nil {
			logger.InfoContext(ctx, "database connection successful")
			return true
		}

		wait := time.Duration(attempt) * 200 * time.Millisecond
		logger.WarnContext(ctx, "database ping failed, retrying",
			"attempt", attempt,
			"max_attempts", defaultRetries,
			"wait", wait,
			"error", err,
		)
		if attempt == defaultRetries {
			break
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
	return false
}
