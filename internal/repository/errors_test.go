package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

func TestTranslateDBErrorDuplicateConstraint(t *testing.T) {
	err := translateDBError(&pq.Error{Code: "23505", Constraint: "enrollments_active_unique"}, "insert enrollment")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
}

func TestTranslateDBErrorOtherUniqueViolation(t *testing.T) {
	err := translateDBError(&pq.Error{Code: "23505", Constraint: "students_email_key"}, "create student")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NotErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
}

func TestTranslateDBErrorConcurrencyCodes(t *testing.T) {
	for _, code := range []pq.ErrorCode{"40001", "40P01", "55P03"} {
		err := translateDBError(&pq.Error{Code: code}, "lock course")
		assert.ErrorIs(t, err, appErrors.ErrConflict, string(code))
	}
}

func TestTranslateDBErrorPassesThroughUnknown(t *testing.T) {
	err := translateDBError(sql.ErrConnDone, "count enrolled")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	var appErr *appErrors.Error
	assert.False(t, errors.As(err, &appErr))
}

func TestTranslateDBErrorNil(t *testing.T) {
	assert.NoError(t, translateDBError(nil, "noop"))
}
