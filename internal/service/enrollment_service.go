package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error)
	CountEnrolledTx(ctx context.Context, q sqlx.QueryerContext, courseID int64) (int, error)
	InsertTx(ctx context.Context, q sqlx.QueryerContext, enrollment *models.Enrollment) error
}

type courseLocker interface {
	LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Course, error)
}

type studentTxReader interface {
	FindByIDTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Student, error)
}

type semesterTxReader interface {
	FindSemesterTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Semester, error)
}

// EnrollRequest describes an admission attempt.
type EnrollRequest struct {
	StudentID  int64 `json:"student_id" validate:"required"`
	CourseID   int64 `json:"course_id" validate:"required"`
	SemesterID int64 `json:"semester_id" validate:"required"`
}

// EnrollmentService is the admission controller: it decides atomically
// whether a student may be enrolled in a course for a semester, and if so
// creates the enrollment.
type EnrollmentService struct {
	tx          txBeginner
	enrollments enrollmentStore
	courses     courseLocker
	students    studentTxReader
	semesters   semesterTxReader
	invalidator courseInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(tx txBeginner, enrollments enrollmentStore, courses courseLocker, students studentTxReader, semesters semesterTxReader, invalidator courseInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{tx: tx, enrollments: enrollments, courses: courses, students: students, semesters: semesters, invalidator: invalidator, metrics: metrics, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Detail returns a single enrollment with contextual info.
func (s *EnrollmentService) Detail(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll admits a student into a course for a semester. The capacity
// check and the insert execute inside one transaction holding a row lock
// on the course, so two racing admissions for the last seat resolve to
// exactly one success and one COURSE_FULL.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment := models.Enrollment{
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		SemesterID: req.SemesterID,
		Status:     models.EnrollmentStatusEnrolled,
	}

	detail, err := s.admit(ctx, &enrollment)
	if err != nil {
		s.metrics.RecordAdmission(admissionOutcome(err))
		return nil, err
	}
	s.metrics.RecordAdmission("admitted")

	s.invalidateCourse(ctx, req.CourseID)
	s.logger.Info("student admitted",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.Int64("student_id", req.StudentID),
		zap.Int64("course_id", req.CourseID))
	return detail, nil
}

// admit runs the admission transaction and assembles the response from the
// rows read under the lock, so a committed admission can never fail on a
// follow-up read.
func (s *EnrollmentService) admit(ctx context.Context, enrollment *models.Enrollment) (detail *models.EnrollmentDetail, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin admission")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	course, err := s.courses.LockTx(ctx, tx, enrollment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, translateOrInternal(err, "failed to lock course")
	}
	if course.Status != models.StatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course is not active")
	}

	student, err := s.students.FindByIDTx(ctx, tx, enrollment.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, translateOrInternal(err, "failed to load student")
	}
	if student.Status != models.StatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student is not active")
	}

	semester, err := s.semesters.FindSemesterTx(ctx, tx, enrollment.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, translateOrInternal(err, "failed to load semester")
	}

	enrolled, err := s.enrollments.CountEnrolledTx(ctx, tx, course.ID)
	if err != nil {
		return nil, translateOrInternal(err, "failed to count enrollments")
	}
	if enrolled >= course.Capacity {
		return nil, appErrors.WithDetails(appErrors.ErrCourseFull, map[string]interface{}{
			"capacity": course.Capacity,
			"enrolled": enrolled,
		})
	}

	if err = s.enrollments.InsertTx(ctx, tx, enrollment); err != nil {
		return nil, translateOrInternal(err, "failed to create enrollment")
	}

	if err = tx.Commit(); err != nil {
		return nil, translateOrInternal(err, "failed to commit admission")
	}

	return &models.EnrollmentDetail{
		Enrollment:  *enrollment,
		StudentName: student.FirstName + " " + student.LastName,
		CourseCode:  course.Code,
		CourseName:  course.Name,
		Term:        semester.Term,
		Year:        semester.Year,
	}, nil
}

func (s *EnrollmentService) invalidateCourse(ctx context.Context, courseID int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateCourse(ctx, courseID); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Int64("course_id", courseID), zap.Error(err))
	}
}

func admissionOutcome(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrCourseFull):
		return "course_full"
	case errors.Is(err, appErrors.ErrDuplicateEnrollment):
		return "duplicate"
	case errors.Is(err, appErrors.ErrConflict):
		return "conflict"
	default:
		return "rejected"
	}
}

// translateOrInternal keeps already-typed errors (duplicate, conflict)
// intact and wraps everything else as internal.
func translateOrInternal(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
