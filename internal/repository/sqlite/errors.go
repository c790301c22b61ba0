package sqlite

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	msqlite "modernc.org/sqlite"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/repository"
)

const uniqueFailedPrefix = "UNIQUE constraint failed: "

// storeError converts a driver error into a *repository.StoreError.
//
// SQLite reports constraint violations as "constraint failed: UNIQUE
// constraint failed: users.email (2067)". The column reference becomes the
// Details field and the error additionally matches apperror.ErrConflict.
func storeError(op string, err error) error {
	se := &repository.StoreError{Op: "sqlite: " + op, Err: err}

	var sqlErr *msqlite.Error
	if !errors.As(err, &sqlErr) {
		se.Message = err.Error()
		return se
	}

	se.Code = strconv.Itoa(sqlErr.Code())
	msg := sqlErr.Error()
	se.Message = msg

	if i := strings.Index(msg, uniqueFailedPrefix); i >= 0 {
		detail := msg[i+len(uniqueFailedPrefix):]
		if j := strings.Index(detail, " ("); j >= 0 {
			detail = detail[:j]
		}
		se.Details = detail
		se.Err = fmt.Errorf("%w: %w", apperror.ErrConflict, err)
	}

	return se
}
