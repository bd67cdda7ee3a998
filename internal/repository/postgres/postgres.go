package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code for unique-constraint hits.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation. Create paths translate it into repository.ErrDuplicate so the
// service layer can treat a lost creation race as success.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
