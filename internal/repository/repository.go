// Package repository declares the persistence contracts the services depend on.
//
// Services only ever see these interfaces. The concrete stores live in the
// sqlite and postgres subpackages and are picked in internal/server.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/account-portal/internal/model"
)

// UserUpdate is the selective field replacement applied by a profile update.
// PasswordHash is nil when the password is left unchanged.
type UserUpdate struct {
	Username     string
	Email        string
	PasswordHash *string
}

// UserRepository is the collaborator over the external data store.
//
// Lookups return an error wrapping apperror.ErrNotFound when no row matches.
// Store failures are reported as *StoreError.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// ExistsByEmailExcept reports whether any user other than excludeID uses
	// email. An empty excludeID excludes nobody.
	ExistsByEmailExcept(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByUsernameExcept(ctx context.Context, username, excludeID string) (bool, error)

	// Insert stores a new user, assigning ID and timestamps in place.
	Insert(ctx context.Context, user *model.User) error
	Update(ctx context.Context, id string, fields UserUpdate) error
	Delete(ctx context.Context, id string) error

	CountAll(ctx context.Context) (int, error)
	PageByCreatedAtDesc(ctx context.Context, offset, limit int) ([]model.User, error)
}

// StoreError is a failure reported by the underlying database.
//
// Message is the store's generic message and Details its most specific
// explanation (for example which key violated a constraint). Either may be
// empty.
type StoreError struct {
	Op      string
	Message string
	Details string
	Code    string
	Err     error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	if e.Message == "" && e.Details == "" && e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
