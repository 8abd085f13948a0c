package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

func courseDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"course_id", "course_code", "course_name", "credits", "level", "capacity",
		"department_id", "instructor_id", "status",
		"department_name", "instructor_name", "enrolled_count",
	})
}

func TestCourseRepositoryFindDetailDerivesEnrolledCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := courseDetailRows().
		AddRow(20, "CS101", "Intro to CS", 3, "Undergraduate", 25, 1, 2, "Active",
			"Computer Science", "Grace Hopper", 24)
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.course_id AND e.status = 'Enrolled') AS enrolled_count")).
		WithArgs(int64(20)).
		WillReturnRows(rows)

	detail, err := repo.FindDetailByID(context.Background(), 20)
	require.NoError(t, err)
	require.Equal(t, 24, detail.EnrolledCount)
	require.Equal(t, 25, detail.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := courseDetailRows().
		AddRow(20, "CS101", "Intro to CS", 3, "Undergraduate", 25, 1, 2, "Active",
			"Computer Science", "Grace Hopper", 10)
	mock.ExpectQuery(regexp.QuoteMeta("c.department_id = $2")).
		WithArgs("%intro%", int64(1)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses c")).
		WithArgs("%intro%", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{
		Search:       "intro",
		DepartmentID: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, courses, 1)
	require.Equal(t, "CS101", courses[0].Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateDefaultsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO courses")).
		WithArgs("CS101", "Intro to CS", 3, "Undergraduate", 25, int64(1), int64(2), models.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow(20))

	course := &models.Course{
		Code: "CS101", Name: "Intro to CS", Credits: 3, Level: "Undergraduate",
		Capacity: 25, DepartmentID: 1, InstructorID: 2,
	}
	require.NoError(t, repo.Create(context.Background(), course))
	require.Equal(t, int64(20), course.ID)
	require.Equal(t, models.StatusActive, course.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryLockTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE course_id = $1 FOR UPDATE")).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{
			"course_id", "course_code", "course_name", "credits", "level", "capacity",
			"department_id", "instructor_id", "status",
		}).AddRow(20, "CS101", "Intro to CS", 3, "Undergraduate", 25, 1, 2, "Active"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	course, err := repo.LockTx(context.Background(), tx, 20)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, course.Status)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListActiveByInstructorTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE instructor_id = $1 AND status = $2 FOR UPDATE")).
		WithArgs(int64(2), models.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{
			"course_id", "course_code", "course_name", "credits", "level", "capacity",
			"department_id", "instructor_id", "status",
		}).
			AddRow(20, "CS101", "Intro to CS", 3, "Undergraduate", 25, 1, 2, "Active").
			AddRow(21, "CS201", "Algorithms", 4, "Undergraduate", 30, 1, 2, "Active"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	courses, err := repo.ListActiveByInstructorTx(context.Background(), tx, 2)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeactivateTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET status = $2 WHERE course_id = $1")).
		WithArgs(int64(20), models.StatusInactive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.DeactivateTx(context.Background(), tx, 20))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryLockTxDeadlockSurfacesConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE course_id = $1 FOR UPDATE")).
		WithArgs(int64(20)).
		WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	_, err = repo.LockTx(context.Background(), tx, 20)
	require.Error(t, err)
	require.ErrorIs(t, err, appErrors.ErrConflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
