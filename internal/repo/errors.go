package repo

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/dailydrop/server/internal/apierr"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// uniqueField derives the column from a "<table>_<column>_key" constraint name.
func uniqueField(constraint string) string {
	if i := strings.Index(constraint, "_"); i >= 0 {
		constraint = constraint[i+1:]
	}
	constraint = strings.TrimSuffix(constraint, "_key")
	return strings.ReplaceAll(constraint, "_", " ")
}

// mapWriteError turns constraint violations into caller-facing errors.
// missing names the referenced entity reported on a foreign key violation.
func mapWriteError(err error, missing string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if pqErr.Constraint == "" {
			return apierr.ErrConflict
		}
		return apierr.ErrConflict.Withf("A user with this %s already exists.", uniqueField(pqErr.Constraint))
	case pqForeignKeyViolation:
		return apierr.ErrNotFound.Withf("%s not found", missing)
	}
	return err
}
