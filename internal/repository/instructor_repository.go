package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/univreg/registrar-api/internal/models"
)

// InstructorRepository handles persistence of instructors.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

const instructorDetailQuery = `SELECT i.instructor_id, i.first_name, i.last_name, i.email, i.title,
        i.department_id, i.status, d.department_name
        FROM instructors i
        JOIN departments d ON d.department_id = i.department_id`

// List returns instructors filtered by the provided criteria.
func (r *InstructorRepository) List(ctx context.Context, filter models.InstructorFilter) ([]models.InstructorDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(i.first_name ILIKE $%d OR i.last_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.DepartmentID != 0 {
		conditions = append(conditions, fmt.Sprintf("i.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("%s%s ORDER BY i.last_name ASC LIMIT %d OFFSET %d", instructorDetailQuery, clause, size, offset)

	var instructors []models.InstructorDetail
	if err := r.db.SelectContext(ctx, &instructors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM instructors i JOIN departments d ON d.department_id = i.department_id%s`, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}
	return instructors, total, nil
}

// FindByID returns an instructor by ID.
func (r *InstructorRepository) FindByID(ctx context.Context, id int64) (*models.Instructor, error) {
	const query = `SELECT instructor_id, first_name, last_name, email, title, department_id, status
        FROM instructors WHERE instructor_id = $1`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id); err != nil {
		return nil, translateDBError(err, "find instructor")
	}
	return &instructor, nil
}

// FindDetailByID returns an instructor with department info.
func (r *InstructorRepository) FindDetailByID(ctx context.Context, id int64) (*models.InstructorDetail, error) {
	query := instructorDetailQuery + ` WHERE i.instructor_id = $1`
	var detail models.InstructorDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, translateDBError(err, "find instructor detail")
	}
	return &detail, nil
}

// Create persists a new instructor record.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.Status == "" {
		instructor.Status = models.StatusActive
	}
	const query = `INSERT INTO instructors (first_name, last_name, email, title, department_id, status)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING instructor_id`
	if err := r.db.GetContext(ctx, &instructor.ID, query,
		instructor.FirstName, instructor.LastName, instructor.Email,
		instructor.Title, instructor.DepartmentID, instructor.Status); err != nil {
		return translateDBError(err, "create instructor")
	}
	return nil
}

// Update persists edits to an existing instructor.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	const query = `UPDATE instructors SET first_name = $2, last_name = $3, email = $4, title = $5, department_id = $6
        WHERE instructor_id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		instructor.ID, instructor.FirstName, instructor.LastName,
		instructor.Email, instructor.Title, instructor.DepartmentID); err != nil {
		return translateDBError(err, "update instructor")
	}
	return nil
}

// LockTx loads an instructor FOR UPDATE within the caller's transaction.
func (r *InstructorRepository) LockTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Instructor, error) {
	const query = `SELECT instructor_id, first_name, last_name, email, title, department_id, status
        FROM instructors WHERE instructor_id = $1 FOR UPDATE`
	var instructor models.Instructor
	if err := sqlx.GetContext(ctx, q, &instructor, query, id); err != nil {
		return nil, translateDBError(err, "lock instructor")
	}
	return &instructor, nil
}

// DeactivateTx marks the instructor Inactive within the caller's transaction.
func (r *InstructorRepository) DeactivateTx(ctx context.Context, e sqlx.ExecerContext, id int64) error {
	const query = `UPDATE instructors SET status = $2 WHERE instructor_id = $1`
	if _, err := e.ExecContext(ctx, query, id, models.StatusInactive); err != nil {
		return translateDBError(err, "deactivate instructor")
	}
	return nil
}
