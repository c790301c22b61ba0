package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password, role, is_active, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function serves single lookups and listings.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// findOne runs a single-row SELECT over the users table.
// sql.ErrNoRows becomes apperror.ErrNotFound; anything else is a StoreError.
func (db *DB) findOne(ctx context.Context, column, value string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, storeError("finding user by "+column, err)
	}
	return u, nil
}

// FindByEmail returns the user registered with the given email.
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.findOne(ctx, "email", email)
}

// FindByID returns the user with the given internal ID.
func (db *DB) FindByID(ctx context.Context, id string) (*model.User, error) {
	return db.findOne(ctx, "id", id)
}

// FindByUsername returns the user with the given username (exact match).
func (db *DB) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.findOne(ctx, "username", username)
}

func (db *DB) existsExcept(ctx context.Context, column, value, excludeID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE `+column+` = ? AND id <> ?)`,
		value, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, storeError("checking "+column+" uniqueness", err)
	}
	return exists, nil
}

// ExistsByEmailExcept reports whether another user already uses email.
func (db *DB) ExistsByEmailExcept(ctx context.Context, email, excludeID string) (bool, error) {
	return db.existsExcept(ctx, "email", email, excludeID)
}

// ExistsByUsernameExcept reports whether another user already uses username.
func (db *DB) ExistsByUsernameExcept(ctx context.Context, username, excludeID string) (bool, error) {
	return db.existsExcept(ctx, "username", username, excludeID)
}

// Insert stores a new user.
//
// ID GENERATION WITH xid:
// xid IDs are 20 URL-safe characters and sort by creation time, which keeps
// the created_at index and the primary key roughly aligned.
func (db *DB) Insert(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return storeError("inserting user", err)
	}
	return nil
}

// Update replaces username and email, and the password hash when one is given.
func (db *DB) Update(ctx context.Context, id string, fields repository.UserUpdate) error {
	now := time.Now().UTC()

	var (
		res sql.Result
		err error
	)
	if fields.PasswordHash != nil {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE users SET username = ?, email = ?, password = ?, updated_at = ?
			 WHERE id = ?`,
			fields.Username, fields.Email, *fields.PasswordHash, now, id,
		)
	} else {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE users SET username = ?, email = ?, updated_at = ?
			 WHERE id = ?`,
			fields.Username, fields.Email, now, id,
		)
	}
	if err != nil {
		return storeError("updating user "+id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storeError("updating user "+id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// Delete hard-deletes the user.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting user "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("deleting user "+id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// CountAll returns the total number of users.
func (db *DB) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, storeError("counting users", err)
	}
	return count, nil
}

// PageByCreatedAtDesc returns up to limit users, newest first, skipping offset.
func (db *DB) PageByCreatedAtDesc(ctx context.Context, offset, limit int) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
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
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}
