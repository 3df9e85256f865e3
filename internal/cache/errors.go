package cache

import (
	"database/sql"
	"errors"
)

// ErrInvalidKey indicates an empty preference key.
var ErrInvalidKey = errors.New("invalid preference key")

// isNoRows reports whether err is the driver's no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
