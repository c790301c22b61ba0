// Package apperror is the error vocabulary shared by the stores, the
// account pipelines and the HTTP layer.
//
// Each sentinel names a kind of failure. Code below the handlers wraps one
// of them (fmt.Errorf("...: %w", apperror.ErrConflict)) and the handlers
// pick a status with KindOf. Nothing in here knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// kinds is checked in order by KindOf. An error joined from a conflict and
// a validation failure reports as a validation failure.
var kinds = []error{
	ErrValidation,
	ErrConflict,
	ErrUnauthorized,
	ErrForbidden,
	ErrNotFound,
	ErrInternal,
}

// AppError is a lookup miss on a named resource.
type AppError struct {
	Kind     error
	Resource string // "user"
	Key      string // id, email or username that was looked up
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Resource, e.Key, e.Kind)
}

func (e *AppError) Unwrap() error {
	return e.Kind
}

// NotFound reports that no resource matched key.
func NotFound(resource, key string) *AppError {
	return &AppError{Kind: ErrNotFound, Resource: resource, Key: key}
}

// KindOf returns the sentinel err belongs to, or ErrInternal when it wraps
// none of them. A nil error has no kind.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
