package dbutil

import (
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Finalize rebinds gendry's ? placeholders to the $n form lib/pq expects.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func pqCode(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code)
	}
	return ""
}

// IsAlreadyExists matches duplicate table/object/schema errors raised by
// CREATE statements that lack IF NOT EXISTS or race with another bootstrap.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	switch pqCode(err) {
	case "42P07", "42710", "42P06", "23505":
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}
