// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts exactly "user" or "admin". Anything else is rejected
// at input validation, never at storage.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// User represents a registered account.
//
// PasswordHash carries the bcrypt output and is tagged json:"-" so that no
// handler can leak it by encoding a User directly. IsActive exists for the
// admin listing; sign-in does not enforce it.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password"`
	Role         Role      `json:"role"      db:"role"`
	IsActive     bool      `json:"isActive"  db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserPage is one window of the admin user listing.
//
// Error is set on failure. TotalCount and TotalPages survive a failed page
// fetch so the caller can still render pagination.
type UserPage struct {
	Users       []User `json:"users"`
	TotalCount  int    `json:"totalCount"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	Error       string `json:"error,omitempty"`
}
