package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// invalidTextRepresentation is raised by postgres when an id is not a valid
// uuid literal.
const invalidTextRepresentation = "22P02"

// ErrDuplicate is returned when a conditional insert finds an existing row
// for the same natural key.
var ErrDuplicate = errors.New("repository: duplicate record")

// IsNotFound reports whether err means the addressed row does not exist.
// Malformed ids cannot name any row and count as missing.
func IsNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size, (page - 1) * size
}
