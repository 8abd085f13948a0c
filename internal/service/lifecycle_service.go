package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

type lifecycleEnrollmentStore interface {
	FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Enrollment, error)
	CompleteTx(ctx context.Context, e sqlx.ExecerContext, id int64, grade string) error
	DropForStudentTx(ctx context.Context, e sqlx.ExecerContext, studentID int64) (int64, error)
	CancelForCourseTx(ctx context.Context, e sqlx.ExecerContext, courseID int64) (int64, error)
}

// PostGradeRequest describes a grade posting.
type PostGradeRequest struct {
	Grade string `json:"grade" validate:"required"`
}

// LifecycleService applies status transitions to enrollments: grading
// directly, and the bulk drop/cancel transitions used by deactivation
// cascades. The three non-Enrolled statuses are terminal.
type LifecycleService struct {
	tx          txBeginner
	enrollments lifecycleEnrollmentStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLifecycleService constructs LifecycleService.
func NewLifecycleService(tx txBeginner, enrollments lifecycleEnrollmentStore, validate *validator.Validate, logger *zap.Logger) *LifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{tx: tx, enrollments: enrollments, validator: validate, logger: logger}
}

// PostGrade records a final grade, moving the enrollment from Enrolled to
// Completed. Grading any other status fails with INVALID_STATE so history
// is never silently overwritten.
func (s *LifecycleService) PostGrade(ctx context.Context, enrollmentID int64, req PostGradeRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	grade := strings.TrimSpace(req.Grade)
	if grade == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade must not be empty")
	}

	if err := s.complete(ctx, enrollmentID, grade); err != nil {
		return nil, err
	}

	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	s.logger.Info("grade posted", zap.Int64("enrollment_id", enrollmentID), zap.String("grade", grade))
	return detail, nil
}

func (s *LifecycleService) complete(ctx context.Context, enrollmentID int64, grade string) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin grading")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err := s.enrollments.LockTx(ctx, tx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return translateOrInternal(err, "failed to lock enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not active"),
			map[string]interface{}{"status": enrollment.Status},
		)
	}

	if err = s.enrollments.CompleteTx(ctx, tx, enrollmentID, grade); err != nil {
		return translateOrInternal(err, "failed to post grade")
	}

	if err = tx.Commit(); err != nil {
		return translateOrInternal(err, "failed to commit grade")
	}
	return nil
}

// DropForStudentTx moves every Enrolled row of the student to
// Dropped_Inactive inside the caller's transaction. Re-running after the
// student is already inactive matches no rows.
func (s *LifecycleService) DropForStudentTx(ctx context.Context, tx *sqlx.Tx, studentID int64) (int64, error) {
	dropped, err := s.enrollments.DropForStudentTx(ctx, tx, studentID)
	if err != nil {
		return 0, err
	}
	return dropped, nil
}

// CancelForCourseTx moves every Enrolled row of the course to
// Course_Cancelled, clearing grades, inside the caller's transaction.
// Capacity pressure clears implicitly because occupancy is always a live
// COUNT over Enrolled rows.
func (s *LifecycleService) CancelForCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) (int64, error) {
	cancelled, err := s.enrollments.CancelForCourseTx(ctx, tx, courseID)
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}
