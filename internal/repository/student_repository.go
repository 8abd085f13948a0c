package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/univreg/registrar-api/internal/models"
)

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailQuery = `SELECT s.student_id, s.first_name, s.last_name, s.email, s.department_id,
        s.enrollment_year, s.gpa, s.status, d.department_name
        FROM students s
        JOIN departments d ON d.department_id = s.department_id`

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.first_name ILIKE $%d OR s.last_name ILIKE $%d OR s.email ILIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.DepartmentID != 0 {
		conditions = append(conditions, fmt.Sprintf("s.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":  "s.last_name",
		"email": "s.email",
		"year":  "s.enrollment_year",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.student_id"
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

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", studentDetailQuery, clause, orderBy, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM students s JOIN departments d ON d.department_id = s.department_id%s`, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	const query = `SELECT student_id, first_name, last_name, email, department_id, enrollment_year, gpa, status
        FROM students WHERE student_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, translateDBError(err, "find student")
	}
	return &student, nil
}

// FindDetailByID returns a student with department info.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id int64) (*models.StudentDetail, error) {
	query := studentDetailQuery + ` WHERE s.student_id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, translateDBError(err, "find student detail")
	}
	return &detail, nil
}

// Create persists a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.Status == "" {
		student.Status = models.StatusActive
	}
	const query = `INSERT INTO students (first_name, last_name, email, department_id, enrollment_year, status)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING student_id`
	if err := r.db.GetContext(ctx, &student.ID, query,
		student.FirstName, student.LastName, student.Email,
		student.DepartmentID, student.EnrollmentYear, student.Status); err != nil {
		return translateDBError(err, "create student")
	}
	return nil
}

// Update persists edits to an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET first_name = $2, last_name = $3, email = $4,
        department_id = $5, enrollment_year = $6, gpa = $7, status = $8 WHERE student_id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		student.ID, student.FirstName, student.LastName, student.Email,
		student.DepartmentID, student.EnrollmentYear, student.GPA, student.Status); err != nil {
		return translateDBError(err, "update student")
	}
	return nil
}

// FindByIDTx reads a student within the caller's transaction.
func (r *StudentRepository) FindByIDTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Student, error) {
	const query = `SELECT student_id, first_name, last_name, email, department_id, enrollment_year, gpa, status
        FROM students WHERE student_id = $1`
	var student models.Student
	if err := sqlx.GetContext(ctx, q, &student, query, id); err != nil {
		return nil, translateDBError(err, "find student")
	}
	return &student, nil
}

// LockTx loads a student FOR UPDATE within the caller's transaction.
func (r *StudentRepository) LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Student, error) {
	const query = `SELECT student_id, first_name, last_name, email, department_id, enrollment_year, gpa, status
        FROM students WHERE student_id = $1 FOR UPDATE`
	var student models.Student
	if err := sqlx.GetContext(ctx, q, &student, query, id); err != nil {
		return nil, translateDBError(err, "lock student")
	}
	return &student, nil
}

// DeactivateTx marks the student Inactive within the caller's transaction.
func (r *StudentRepository) DeactivateTx(ctx context.Context, e sqlx.ExecerContext, id int64) error {
	const query = `UPDATE students SET status = $2 WHERE student_id = $1`
	if _, err := e.ExecContext(ctx, query, id, models.StatusInactive); err != nil {
		return translateDBError(err, "deactivate student")
	}
	return nil
}
