package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

// Postgres SQLSTATE codes the registrar core cares about.
const (
	sqlstateUniqueViolation      = "23505"
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateLockNotAvailable     = "55P03"
)

// activeUniqueConstraint is the partial unique index enforcing at most one
// Enrolled row per (student, course, semester).
const activeUniqueConstraint = "enrollments_active_unique"

// translateDBError classifies driver errors into the domain taxonomy by
// SQLSTATE code and constraint name. Anything unrecognized is wrapped with
// the operation name so callers can surface it as internal.
func translateDBError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case sqlstateUniqueViolation:
			if pqErr.Constraint == activeUniqueConstraint {
				return appErrors.Wrap(err, appErrors.ErrDuplicateEnrollment.Code,
					appErrors.ErrDuplicateEnrollment.Status, appErrors.ErrDuplicateEnrollment.Message)
			}
			return appErrors.Wrap(err, appErrors.ErrConflict.Code,
				appErrors.ErrConflict.Status, "unique constraint violated")
		case sqlstateSerializationFailure, sqlstateDeadlockDetected, sqlstateLockNotAvailable:
			return appErrors.Wrap(err, appErrors.ErrConflict.Code,
				appErrors.ErrConflict.Status, appErrors.ErrConflict.Message)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
