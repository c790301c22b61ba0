package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"bare sentinel", ErrUnauthorized, ErrUnauthorized},
		{"not found helper", NotFound("user", "u1"), ErrNotFound},
		{"wrapped twice", fmt.Errorf("service: %w", fmt.Errorf("store: %w", ErrConflict)), ErrConflict},
		{"validation wins over conflict", errors.Join(ErrConflict, ErrValidation), ErrValidation},
		{"foreign error", errors.New("disk on fire"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	err := fmt.Errorf("loading profile: %w", NotFound("user", "ghost@example.com"))

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(%v, ErrNotFound) = false", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Errorf("a lookup miss must not read as a validation error")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() could not extract *AppError")
	}
	if appErr.Key != "ghost@example.com" {
		t.Errorf("Key = %q, want %q", appErr.Key, "ghost@example.com")
	}
	if got, want := appErr.Error(), `user "ghost@example.com": not found`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
