package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

const uniqueViolation = "23505"

// DBTX is the subset of *pgxpool.Pool the store needs. pgxmock pools
// satisfy it as well.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the Postgres implementation of repository.UserRepository.
type DB struct {
	pool   DBTX
	logger *slog.Logger
}

var _ repository.UserRepository = (*DB)(nil)

// New wraps an open pool.
func New(pool DBTX, logger *slog.Logger) *DB {
	return &DB{pool: pool, logger: logger}
}

const userColumns = `id, username, email, password, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		id   uuid.UUID
		role string
	)
	if err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.String()
	u.Role = model.Role(role)
	return &u, nil
}

// storeError keeps the server's message and detail so the profile update can
// show the most specific explanation available.
func storeError(op string, err error) error {
	se := &repository.StoreError{Op: "postgres: " + op, Err: err}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Message = pgErr.Message
		se.Details = pgErr.Detail
		se.Code = pgErr.Code
		if pgErr.Code == uniqueViolation {
			se.Err = fmt.Errorf("%w: %w", apperror.ErrConflict, err)
		}
		return se
	}

	se.Message = err.Error()
	return se
}

func (db *DB) findOne(ctx context.Context, column string, value any, key string) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, storeError("finding user by "+column, err)
	}
	return u, nil
}

func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.findOne(ctx, "email", email, email)
}

// FindByID treats an id that is not a UUID as unknown instead of sending it
// to the server, which would reject it with a syntax error.
func (db *DB) FindByID(ctx context.Context, id string) (*model.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NotFound("user", id)
	}
	return db.findOne(ctx, "id", uid, id)
}

func (db *DB) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.findOne(ctx, "username", username, username)
}

func (db *DB) existsExcept(ctx context.Context, column, value, excludeID string) (bool, error) {
	var (
		exists bool
		err    error
	)
	uid, parseErr := uuid.Parse(excludeID)
	if excludeID == "" || parseErr != nil {
		err = db.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE `+column+` = $1)`, value,
		).Scan(&exists)
	} else {
		err = db.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE `+column+` = $1 AND id <> $2)`, value, uid,
		).Scan(&exists)
	}
	if err != nil {
		return false, storeError("checking "+column+" uniqueness", err)
	}
	return exists, nil
}

func (db *DB) ExistsByEmailExcept(ctx context.Context, email, excludeID string) (bool, error) {
	return db.existsExcept(ctx, "email", email, excludeID)
}

func (db *DB) ExistsByUsernameExcept(ctx context.Context, username, excludeID string) (bool, error) {
	return db.existsExcept(ctx, "username", username, excludeID)
}

// Insert assigns a random UUID and lets the server stamp the timestamps.
func (db *DB) Insert(ctx context.Context, user *model.User) error {
	id := uuid.New()
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	var createdAt, updatedAt time.Time
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		id, user.Username, user.Email, user.PasswordHash, string(user.Role), user.IsActive,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		db.logger.ErrorContext(ctx, "insert user failed", "error", err)
		return storeError("inserting user", err)
	}

	user.ID = id.String()
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return nil
}

func (db *DB) Update(ctx context.Context, id string, fields repository.UserUpdate) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperror.NotFound("user", id)
	}

	var tag pgconn.CommandTag
	if fields.PasswordHash != nil {
		tag, err = db.pool.Exec(ctx,
			`UPDATE users SET username = $1, email = $2, password = $3, updated_at = now()
			 WHERE id = $4`,
			fields.Username, fields.Email, *fields.PasswordHash, uid)
	} else {
		tag, err = db.pool.Exec(ctx,
			`UPDATE users SET username = $1, email = $2, updated_at = now()
			 WHERE id = $3`,
			fields.Username, fields.Email, uid)
	}
	if err != nil {
		return storeError("updating user "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperror.NotFound("user", id)
	}

	tag, err := db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, uid)
	if err != nil {
		return storeError("deleting user "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (db *DB) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, storeError("counting users", err)
	}
	return count, nil
}

func (db *DB) PageByCreatedAtDesc(ctx context.Context, offset, limit int) ([]model.User, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, storeError("listing users", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storeError("scanning user row", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterating users", err)
	}
	return users, nil
}
