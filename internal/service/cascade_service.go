package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

type studentCascadeStore interface {
	LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Student, error)
	DeactivateTx(ctx context.Context, e sqlx.ExecerContext, id int64) error
}

type courseCascadeStore interface {
	LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Course, error)
	DeactivateTx(ctx context.Context, e sqlx.ExecerContext, id int64) error
	ListActiveByInstructorTx(ctx context.Context, q sqlx.QueryerContext, instructorID int64) ([]models.Course, error)
}

type instructorCascadeStore interface {
	LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Instructor, error)
	DeactivateTx(ctx context.Context, e sqlx.ExecerContext, id int64) error
}

type enrollmentCounter interface {
	CountEnrolledTx(ctx context.Context, q sqlx.QueryerContext, courseID int64) (int, error)
}

// lifecycleEngine is the slice of LifecycleService the cascades rely on.
type lifecycleEngine interface {
	DropForStudentTx(ctx context.Context, tx *sqlx.Tx, studentID int64) (int64, error)
	CancelForCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) (int64, error)
}

// CascadeService sequences multi-entity deactivations so entity status
// and dependent enrollment status change together, atomically, or not at
// all. Entities are soft-deleted: status flips to Inactive, rows remain.
type CascadeService struct {
	tx          txBeginner
	students    studentCascadeStore
	courses     courseCascadeStore
	instructors instructorCascadeStore
	enrollments enrollmentCounter
	lifecycle   lifecycleEngine
	invalidator courseInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewCascadeService constructs CascadeService.
func NewCascadeService(tx txBeginner, students studentCascadeStore, courses courseCascadeStore, instructors instructorCascadeStore, enrollments enrollmentCounter, lifecycle lifecycleEngine, invalidator courseInvalidator, metrics *MetricsService, logger *zap.Logger) *CascadeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CascadeService{tx: tx, students: students, courses: courses, instructors: instructors, enrollments: enrollments, lifecycle: lifecycle, invalidator: invalidator, metrics: metrics, logger: logger}
}

// DeactivateStudent marks the student Inactive and drops their Enrolled
// rows in one transaction.
func (s *CascadeService) DeactivateStudent(ctx context.Context, studentID int64) (result *models.CascadeResult, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin deactivation")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.students.LockTx(ctx, tx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, translateOrInternal(err, "failed to lock student")
	}

	if err = s.students.DeactivateTx(ctx, tx, studentID); err != nil {
		return nil, translateOrInternal(err, "failed to deactivate student")
	}

	dropped, err := s.lifecycle.DropForStudentTx(ctx, tx, studentID)
	if err != nil {
		return nil, translateOrInternal(err, "failed to drop enrollments")
	}

	if err = tx.Commit(); err != nil {
		return nil, translateOrInternal(err, "failed to commit deactivation")
	}

	s.metrics.RecordCascade("student")
	s.logger.Info("student deactivated", zap.Int64("student_id", studentID), zap.Int64("dropped", dropped))
	return &models.CascadeResult{EnrollmentsDropped: int(dropped)}, nil
}

// DeactivateCourse marks the course Inactive and cancels its Enrolled
// rows. Without force, a course holding active enrollments is left
// untouched and the caller receives CONFIRMATION_REQUIRED carrying the
// count; the caller re-invokes with force after the user confirms.
func (s *CascadeService) DeactivateCourse(ctx context.Context, courseID int64, force bool) (result *models.CascadeResult, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin deactivation")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.courses.LockTx(ctx, tx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, translateOrInternal(err, "failed to lock course")
	}

	enrolled, err := s.enrollments.CountEnrolledTx(ctx, tx, courseID)
	if err != nil {
		return nil, translateOrInternal(err, "failed to count enrollments")
	}
	if enrolled > 0 && !force {
		// The dry-run phase mutates nothing; rollback via the deferred
		// handler by returning the typed error.
		return nil, appErrors.WithDetails(appErrors.ErrConfirmationRequired, map[string]interface{}{
			"enrolled_count": enrolled,
		})
	}

	if err = s.courses.DeactivateTx(ctx, tx, courseID); err != nil {
		return nil, translateOrInternal(err, "failed to deactivate course")
	}

	cancelled, err := s.lifecycle.CancelForCourseTx(ctx, tx, courseID)
	if err != nil {
		return nil, translateOrInternal(err, "failed to cancel enrollments")
	}

	if err = tx.Commit(); err != nil {
		return nil, translateOrInternal(err, "failed to commit deactivation")
	}

	s.invalidateCourse(ctx, courseID)
	s.metrics.RecordCascade("course")
	s.logger.Info("course deactivated", zap.Int64("course_id", courseID), zap.Int64("cancelled", cancelled))
	return &models.CascadeResult{CoursesDeactivated: 1, EnrollmentsCancelled: int(cancelled)}, nil
}

// DeactivateInstructor marks the instructor Inactive, then every Active
// course of theirs Inactive with its Enrolled rows cancelled. The whole
// transitive cascade commits or rolls back as one unit.
func (s *CascadeService) DeactivateInstructor(ctx context.Context, instructorID int64) (result *models.CascadeResult, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin deactivation")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.instructors.LockTx(ctx, tx, instructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, translateOrInternal(err, "failed to lock instructor")
	}

	if err = s.instructors.DeactivateTx(ctx, tx, instructorID); err != nil {
		return nil, translateOrInternal(err, "failed to deactivate instructor")
	}

	courses, err := s.courses.ListActiveByInstructorTx(ctx, tx, instructorID)
	if err != nil {
		return nil, translateOrInternal(err, "failed to list instructor courses")
	}

	var cancelled int64
	for _, course := range courses {
		if err = s.courses.DeactivateTx(ctx, tx, course.ID); err != nil {
			return nil, translateOrInternal(err, "failed to deactivate course")
		}
		var n int64
		if n, err = s.lifecycle.CancelForCourseTx(ctx, tx, course.ID); err != nil {
			return nil, translateOrInternal(err, "failed to cancel enrollments")
		}
		cancelled += n
	}

	if err = tx.Commit(); err != nil {
		return nil, translateOrInternal(err, "failed to commit deactivation")
	}

	for _, course := range courses {
		s.invalidateCourse(ctx, course.ID)
	}
	s.metrics.RecordCascade("instructor")
	s.logger.Info("instructor deactivated",
		zap.Int64("instructor_id", instructorID),
		zap.Int("courses", len(courses)),
		zap.Int64("cancelled", cancelled))
	return &models.CascadeResult{CoursesDeactivated: len(courses), EnrollmentsCancelled: int(cancelled)}, nil
}

func (s *CascadeService) invalidateCourse(ctx context.Context, courseID int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateCourse(ctx, courseID); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Int64("course_id", courseID), zap.Error(err))
	}
}
