package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univreg/registrar-api/internal/models"
	"github.com/univreg/registrar-api/internal/repository"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type mockEnrollmentStore struct {
	details     map[int64]models.EnrollmentDetail
	history     []models.EnrollmentDetail
	enrolled    int
	countErr    error
	insertErr   error
	inserted    *models.Enrollment
	insertCalls int
}

func (m *mockEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return m.history, len(m.history), nil
}

func (m *mockEnrollmentStore) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	return m.history, nil
}

func (m *mockEnrollmentStore) CountEnrolledTx(ctx context.Context, q sqlx.QueryerContext, courseID int64) (int, error) {
	return m.enrolled, m.countErr
}

func (m *mockEnrollmentStore) InsertTx(ctx context.Context, q sqlx.QueryerContext, enrollment *models.Enrollment) error {
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	enrollment.ID = 7
	m.inserted = enrollment
	return nil
}

type mockCourseLocker struct {
	course  *models.Course
	lockErr error
}

func (m *mockCourseLocker) LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Course, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	return m.course, nil
}

type mockStudentTxReader struct {
	student *models.Student
	err     error
}

func (m *mockStudentTxReader) FindByIDTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.student, nil
}

type mockSemesterTxReader struct {
	semester *models.Semester
	err      error
}

func (m *mockSemesterTxReader) FindSemesterTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Semester, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.semester, nil
}

type mockInvalidator struct {
	invalidated []int64
	err         error
}

func (m *mockInvalidator) InvalidateCourse(ctx context.Context, courseID int64) error {
	m.invalidated = append(m.invalidated, courseID)
	return m.err
}

func activeCourse(capacity int) *models.Course {
	return &models.Course{ID: 20, Code: "CS101", Name: "Intro to Computing", Capacity: capacity, Status: models.StatusActive}
}

func activeStudent() *models.Student {
	return &models.Student{ID: 10, FirstName: "Ada", LastName: "Lovelace", Status: models.StatusActive}
}

func fallSemester() *models.Semester {
	return &models.Semester{ID: 30, Term: "Fall", Year: 2025}
}

func TestEnrollAdmitsWithSeatAvailable(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	store := &mockEnrollmentStore{enrolled: 24}
	invalidator := &mockInvalidator{}
	svc := NewEnrollmentService(db, store,
		&mockCourseLocker{course: activeCourse(25)},
		&mockStudentTxReader{student: activeStudent()},
		&mockSemesterTxReader{semester: fallSemester()},
		invalidator, nil, nil, nil)

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, int64(7), detail.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, store.inserted.Status)
	assert.Equal(t, []int64{20}, invalidator.invalidated)

	// the response is assembled from the rows read under the lock, so a
	// committed admission never depends on a follow-up read
	assert.Equal(t, "Ada Lovelace", detail.StudentName)
	assert.Equal(t, "CS101", detail.CourseCode)
	assert.Equal(t, "Intro to Computing", detail.CourseName)
	assert.Equal(t, "Fall", detail.Term)
	assert.Equal(t, 2025, detail.Year)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollRejectsWhenCourseFull(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	store := &mockEnrollmentStore{enrolled: 25}
	svc := NewEnrollmentService(db, store,
		&mockCourseLocker{course: activeCourse(25)},
		&mockStudentTxReader{student: activeStudent()},
		&mockSemesterTxReader{semester: fallSemester()},
		nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCourseFull)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 25, appErr.Details["capacity"])
	assert.Equal(t, 25, appErr.Details["enrolled"])
	assert.Zero(t, store.insertCalls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollRejectsDuplicateActiveEnrollment(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	store := &mockEnrollmentStore{
		enrolled:  5,
		insertErr: appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already enrolled"),
	}
	svc := NewEnrollmentService(db, store,
		&mockCourseLocker{course: activeCourse(25)},
		&mockStudentTxReader{student: activeStudent()},
		&mockSemesterTxReader{semester: fallSemester()},
		nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollRejectsInactiveCourse(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	course := activeCourse(25)
	course.Status = models.StatusInactive
	svc := NewEnrollmentService(db, &mockEnrollmentStore{},
		&mockCourseLocker{course: course},
		&mockStudentTxReader{student: activeStudent()},
		&mockSemesterTxReader{semester: fallSemester()},
		nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollRejectsInactiveStudent(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewEnrollmentService(db, &mockEnrollmentStore{},
		&mockCourseLocker{course: activeCourse(25)},
		&mockStudentTxReader{student: &models.Student{ID: 10, Status: models.StatusInactive}},
		&mockSemesterTxReader{semester: fallSemester()},
		nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollUnknownCourse(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewEnrollmentService(db, &mockEnrollmentStore{},
		&mockCourseLocker{lockErr: sql.ErrNoRows},
		&mockStudentTxReader{student: activeStudent()},
		&mockSemesterTxReader{semester: fallSemester()},
		nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 99, SemesterID: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollValidatesPayload(t *testing.T) {
	svc := NewEnrollmentService(nil, &mockEnrollmentStore{}, &mockCourseLocker{}, &mockStudentTxReader{}, &mockSemesterTxReader{}, nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDetailNotFound(t *testing.T) {
	svc := NewEnrollmentService(nil, &mockEnrollmentStore{}, &mockCourseLocker{}, &mockStudentTxReader{}, &mockSemesterTxReader{}, nil, nil, nil, nil)

	_, err := svc.Detail(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func newWiredAdmissionService(db *sqlx.DB) *EnrollmentService {
	return NewEnrollmentService(db,
		repository.NewEnrollmentRepository(nil),
		repository.NewCourseRepository(nil),
		repository.NewStudentRepository(nil),
		repository.NewReferenceRepository(nil),
		nil, nil, nil, nil)
}

func expectAdmissionChecks(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM courses WHERE course_id = \$1 FOR UPDATE`).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{
			"course_id", "course_code", "course_name", "credits", "level", "capacity",
			"department_id", "instructor_id", "status",
		}).AddRow(20, "CS101", "Intro to Computing", 3, "Undergraduate", 25, 1, 2, "Active"))
	mock.ExpectQuery(`FROM students WHERE student_id = \$1`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{
			"student_id", "first_name", "last_name", "email", "department_id",
			"enrollment_year", "gpa", "status",
		}).AddRow(10, "Ada", "Lovelace", "ada@univ.edu", 1, 2024, nil, "Active"))
	mock.ExpectQuery(`FROM semesters WHERE semester_id = \$1`).
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"semester_id", "term", "year"}).
			AddRow(30, "Fall", 2025))
}

func TestEnrollChecksSeatsAndInsertsInOneTransaction(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	// ordered expectations: the lock, the live count and the insert must all
	// run inside the same transaction, so no admission can squeeze in
	// between the seat check and the write
	mock.ExpectBegin()
	expectAdmissionChecks(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE course_id = \$1 AND status = \$2`).
		WithArgs(int64(20), models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(24))
	mock.ExpectQuery(`INSERT INTO enrollments`).
		WithArgs(int64(10), int64(20), int64(30), models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id"}).AddRow(41))
	mock.ExpectCommit()

	svc := newWiredAdmissionService(db)
	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(41), detail.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollAcceptsSameTripleAfterTerminalStatus(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	// the active-uniqueness index covers only Enrolled rows, so a prior
	// Course_Cancelled row for the same (student, course, semester) neither
	// counts toward capacity nor violates the index on re-enrollment
	mock.ExpectBegin()
	expectAdmissionChecks(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE course_id = \$1 AND status = \$2`).
		WithArgs(int64(20), models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO enrollments`).
		WithArgs(int64(10), int64(20), int64(30), models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id"}).AddRow(42))
	mock.ExpectCommit()

	svc := newWiredAdmissionService(db)
	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(42), detail.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, detail.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollSurfacesDeadlockAsConflict(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM courses WHERE course_id = \$1 FOR UPDATE`).
		WithArgs(int64(20)).
		WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()

	svc := newWiredAdmissionService(db)
	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, CourseID: 20, SemesterID: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NotErrorIs(t, err, appErrors.ErrInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}
