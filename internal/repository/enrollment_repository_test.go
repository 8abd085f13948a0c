package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"enrollment_id", "student_id", "course_id", "semester_id", "status", "grade",
		"student_name", "course_code", "course_name", "term", "year",
	})
}

func TestEnrollmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	rows := enrollmentDetailRows().
		AddRow(1, 10, 20, 30, "Enrolled", nil, "Ada Lovelace", "CS101", "Intro to CS", "Fall", 2025)
	mock.ExpectQuery(regexp.QuoteMeta("e.student_id = $1")).
		WithArgs(int64(10), models.EnrollmentStatusEnrolled).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(10), models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		StudentID: 10,
		Status:    models.EnrollmentStatusEnrolled,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, enrollments, 1)
	require.Equal(t, "Ada Lovelace", enrollments[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByStudentOrdersByTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	grade := "A"
	rows := enrollmentDetailRows().
		AddRow(2, 10, 21, 31, "Completed", grade, "Ada Lovelace", "CS201", "Algorithms", "Spring", 2026).
		AddRow(1, 10, 20, 30, "Enrolled", nil, "Ada Lovelace", "CS101", "Intro to CS", "Fall", 2025)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sm.year DESC, sm.term DESC")).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	history, err := repo.ListByStudent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.EnrollmentStatusCompleted, history[0].Status)
	require.NotNil(t, history[0].Grade)
	require.Equal(t, "A", *history[0].Grade)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountEnrolledTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2")).
		WithArgs(int64(20), models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(24))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	count, err := repo.CountEnrolledTx(context.Background(), tx, 20)
	require.NoError(t, err)
	require.Equal(t, 24, count)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryInsertTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs(int64(10), int64(20), int64(30), models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id"}).AddRow(7))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	enrollment := &models.Enrollment{StudentID: 10, CourseID: 20, SemesterID: 30}
	require.NoError(t, repo.InsertTx(context.Background(), tx, enrollment))
	require.Equal(t, int64(7), enrollment.ID)
	require.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryInsertTxDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_active_unique"})
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.InsertTx(context.Background(), tx, &models.Enrollment{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.Error(t, err)
	require.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCompleteTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, grade = $3 WHERE enrollment_id = $1")).
		WithArgs(int64(7), models.EnrollmentStatusCompleted, "B+").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.CompleteTx(context.Background(), tx, 7, "B+"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDropForStudentTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2 WHERE student_id = $1 AND status = $3")).
		WithArgs(int64(10), models.EnrollmentStatusDroppedInactive, models.EnrollmentStatusEnrolled).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	affected, err := repo.DropForStudentTx(context.Background(), tx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), affected)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCancelForCourseTxClearsGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, grade = NULL WHERE course_id = $1 AND status = $3")).
		WithArgs(int64(20), models.EnrollmentStatusCourseCancelled, models.EnrollmentStatusEnrolled).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	affected, err := repo.CancelForCourseTx(context.Background(), tx, 20)
	require.NoError(t, err)
	require.Equal(t, int64(12), affected)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockTxLockTimeoutSurfacesConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE enrollment_id = $1 FOR UPDATE")).
		WithArgs(int64(7)).
		WillReturnError(&pq.Error{Code: "55P03"})
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	_, err = repo.LockTx(context.Background(), tx, 7)
	require.Error(t, err)
	require.ErrorIs(t, err, appErrors.ErrConflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
