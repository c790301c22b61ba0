// Package sqlite stores accounts in a local SQLite file.
//
// It is the default store for development and for tests (":memory:"). The
// hosted deployment uses the postgres package instead; both satisfy
// repository.UserRepository.
//
// The driver is modernc.org/sqlite, a pure Go port, so the binary builds
// with CGO_ENABLED=0.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// connPragmas run on every connection the pool opens. Passing them through
// the DSN matters: a plain Exec would only reach whichever connection
// happened to serve it.
var connPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
}

const openTimeout = 5 * time.Second

// DB is the SQLite-backed user store.
type DB struct {
	conn *sql.DB
}

// dsn appends the connection pragmas to path.
func dsn(path string) string {
	q := url.Values{"_pragma": connPragmas}
	return path + "?" + q.Encode()
}

// New opens (or creates) the database at path and brings the schema up to
// date. Use ":memory:" for a throwaway database.
//
// Each connection to ":memory:" gets its own empty database, so the pool is
// pinned to one connection in that case.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	db := &DB{conn: conn}
	for _, step := range []struct {
		name string
		run  func(context.Context) error
	}{
		{"ping", conn.PingContext},
		{"migrate", db.migrate},
	} {
		if err := step.run(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", step.name, err)
		}
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema.
//
// The UNIQUE constraints on email and username are the final arbiter when two
// signups race past the service-level uniqueness checks.
func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL UNIQUE,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			is_active  INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Older databases predate the is_active flag.
	if err := db.ensureColumn(ctx, "users", "is_active", "INTEGER NOT NULL DEFAULT 1"); err != nil {
		return fmt.Errorf("adding is_active to users: %w", err)
	}

	return nil
}

// ensureColumn runs ALTER TABLE ADD COLUMN unless the column is already
// there, so migrate can run on every start.
func (db *DB) ensureColumn(ctx context.Context, table, column, definition string) error {
	var present bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pragma_table_info(?) WHERE name = ?)`,
		table, column,
	).Scan(&present)
	if err != nil {
		return fmt.Errorf("inspecting %s.%s: %w", table, column, err)
	}
	if present {
		return nil
	}
	_, err = db.conn.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
	return err
}
