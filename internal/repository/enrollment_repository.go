package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/univreg/registrar-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. Methods with a
// Tx suffix run against a caller-owned transaction so admission checks and
// cascades stay atomic.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailColumns = `e.enrollment_id, e.student_id, e.course_id, e.semester_id, e.status, e.grade,
        s.first_name || ' ' || s.last_name AS student_name,
        c.course_code, c.course_name, sm.term, sm.year`

const enrollmentDetailJoins = `FROM enrollments e
JOIN students s ON s.student_id = e.student_id
JOIN courses c ON c.course_id = e.course_id
JOIN semesters sm ON sm.semester_id = e.semester_id`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"student_name": "student_name",
		"course_code":  "c.course_code",
		"semester":     "sm.year",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrollment_id"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	// negative page size disables pagination, used by roster exports
	size := filter.PageSize
	if size == 0 || size > 100 {
		size = 20
	}
	limit := ""
	if size > 0 {
		limit = fmt.Sprintf(" LIMIT %d OFFSET %d", size, (page-1)*size)
	}

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY %s %s%s`,
		enrollmentDetailColumns, enrollmentDetailJoins, clause, orderBy, order, limit)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", enrollmentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = `SELECT enrollment_id, student_id, course_id, semester_id, status, grade FROM enrollments WHERE enrollment_id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, translateDBError(err, "find enrollment")
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.enrollment_id = $1`, enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, translateDBError(err, "find enrollment detail")
	}
	return &detail, nil
}

// ListByStudent returns the full enrollment history for a student, most
// recent semester first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.student_id = $1 ORDER BY sm.year DESC, sm.term DESC`,
		enrollmentDetailColumns, enrollmentDetailJoins)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// CountEnrolledTx returns the live count of Enrolled rows for a course.
// The count is always derived here; no stored seat counter exists.
func (r *EnrollmentRepository) CountEnrolledTx(ctx context.Context, q sqlx.QueryerContext, courseID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, courseID, models.EnrollmentStatusEnrolled); err != nil {
		return 0, translateDBError(err, "count enrolled")
	}
	return count, nil
}

// InsertTx creates an Enrolled row within the caller's transaction. A
// violation of the active-uniqueness index surfaces as DUPLICATE_ENROLLMENT.
func (r *EnrollmentRepository) InsertTx(ctx context.Context, q sqlx.QueryerContext, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (student_id, course_id, semester_id, status)
        VALUES ($1, $2, $3, $4) RETURNING enrollment_id`
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	if err := sqlx.GetContext(ctx, q, &enrollment.ID, query,
		enrollment.StudentID, enrollment.CourseID, enrollment.SemesterID, enrollment.Status); err != nil {
		return translateDBError(err, "insert enrollment")
	}
	return nil
}

// LockTx loads an enrollment FOR UPDATE so grading decisions are serialized.
func (r *EnrollmentRepository) LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Enrollment, error) {
	const query = `SELECT enrollment_id, student_id, course_id, semester_id, status, grade
        FROM enrollments WHERE enrollment_id = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, q, &enrollment, query, id); err != nil {
		return nil, translateDBError(err, "lock enrollment")
	}
	return &enrollment, nil
}

// CompleteTx sets grade and Completed status atomically.
func (r *EnrollmentRepository) CompleteTx(ctx context.Context, e sqlx.ExecerContext, id int64, grade string) error {
	const query = `UPDATE enrollments SET status = $2, grade = $3 WHERE enrollment_id = $1`
	if _, err := e.ExecContext(ctx, query, id, models.EnrollmentStatusCompleted, grade); err != nil {
		return translateDBError(err, "complete enrollment")
	}
	return nil
}

// DropForStudentTx moves every Enrolled row of the student to
// Dropped_Inactive, leaving grades untouched. Idempotent: a re-run
// matches no rows.
func (r *EnrollmentRepository) DropForStudentTx(ctx context.Context, e sqlx.ExecerContext, studentID int64) (int64, error) {
	const query = `UPDATE enrollments SET status = $2 WHERE student_id = $1 AND status = $3`
	res, err := e.ExecContext(ctx, query, studentID,
		models.EnrollmentStatusDroppedInactive, models.EnrollmentStatusEnrolled)
	if err != nil {
		return 0, translateDBError(err, "drop student enrollments")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("drop student enrollments: %w", err)
	}
	return affected, nil
}

// CancelForCourseTx moves every Enrolled row of the course to
// Course_Cancelled and clears the grade. Idempotent.
func (r *EnrollmentRepository) CancelForCourseTx(ctx context.Context, e sqlx.ExecerContext, courseID int64) (int64, error) {
	const query = `UPDATE enrollments SET status = $2, grade = NULL WHERE course_id = $1 AND status = $3`
	res, err := e.ExecContext(ctx, query, courseID,
		models.EnrollmentStatusCourseCancelled, models.EnrollmentStatusEnrolled)
	if err != nil {
		return 0, translateDBError(err, "cancel course enrollments")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel course enrollments: %w", err)
	}
	return affected, nil
}
