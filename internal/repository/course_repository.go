package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/univreg/registrar-api/internal/models"
)

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseDetailQuery = `SELECT c.course_id, c.course_code, c.course_name, c.credits, c.level, c.capacity,
        c.department_id, c.instructor_id, c.status,
        d.department_name,
        i.first_name || ' ' || i.last_name AS instructor_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.course_id AND e.status = 'Enrolled') AS enrolled_count
        FROM courses c
        JOIN departments d ON d.department_id = c.department_id
        JOIN instructors i ON i.instructor_id = c.instructor_id`

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(c.course_code ILIKE $%d OR c.course_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.DepartmentID != 0 {
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.InstructorID != 0 {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("c.level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":     "c.course_code",
		"name":     "c.course_name",
		"capacity": "c.capacity",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.course_code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", courseDetailQuery, clause, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM courses c
        JOIN departments d ON d.department_id = c.department_id
        JOIN instructors i ON i.instructor_id = c.instructor_id%s`, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT course_id, course_code, course_name, credits, level, capacity, department_id, instructor_id, status
        FROM courses WHERE course_id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, translateDBError(err, "find course")
	}
	return &course, nil
}

// FindDetailByID returns a course with department, instructor and the
// derived enrolled count.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error) {
	query := courseDetailQuery + ` WHERE c.course_id = $1`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, translateDBError(err, "find course detail")
	}
	return &detail, nil
}

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.Status == "" {
		course.Status = models.StatusActive
	}
	const query = `INSERT INTO courses (course_code, course_name, credits, level, capacity, department_id, instructor_id, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING course_id`
	if err := r.db.GetContext(ctx, &course.ID, query,
		course.Code, course.Name, course.Credits, course.Level, course.Capacity,
		course.DepartmentID, course.InstructorID, course.Status); err != nil {
		return translateDBError(err, "create course")
	}
	return nil
}

// Update persists edits to an existing course. Capacity edits never touch
// historical enrollments; admission re-reads capacity on every attempt.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	const query = `UPDATE courses SET course_code = $2, course_name = $3, credits = $4, level = $5,
        capacity = $6, department_id = $7, instructor_id = $8 WHERE course_id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		course.ID, course.Code, course.Name, course.Credits, course.Level,
		course.Capacity, course.DepartmentID, course.InstructorID); err != nil {
		return translateDBError(err, "update course")
	}
	return nil
}

// LockTx loads a course FOR UPDATE. Admissions for the same course
// serialize on this lock; different courses proceed in parallel.
func (r *CourseRepository) LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Course, error) {
	const query = `SELECT course_id, course_code, course_name, credits, level, capacity, department_id, instructor_id, status
        FROM courses WHERE course_id = $1 FOR UPDATE`
	var course models.Course
	if err := sqlx.GetContext(ctx, q, &course, query, id); err != nil {
		return nil, translateDBError(err, "lock course")
	}
	return &course, nil
}

// DeactivateTx marks the course Inactive within the caller's transaction.
func (r *CourseRepository) DeactivateTx(ctx context.Context, e sqlx.ExecerContext, id int64) error {
	const query = `UPDATE courses SET status = $2 WHERE course_id = $1`
	if _, err := e.ExecContext(ctx, query, id, models.StatusInactive); err != nil {
		return translateDBError(err, "deactivate course")
	}
	return nil
}

// ListActiveByInstructorTx returns the instructor's Active courses locked
// FOR UPDATE so the transitive cascade sees a stable set.
func (r *CourseRepository) ListActiveByInstructorTx(ctx context.Context, q sqlx.QueryerContext, instructorID int64) ([]models.Course, error) {
	const query = `SELECT course_id, course_code, course_name, credits, level, capacity, department_id, instructor_id, status
        FROM courses WHERE instructor_id = $1 AND status = $2 FOR UPDATE`
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, q, &courses, query, instructorID, models.StatusActive); err != nil {
		return nil, translateDBError(err, "list instructor courses")
	}
	return courses, nil
}
