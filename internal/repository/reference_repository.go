package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/univreg/registrar-api/internal/models"
)

// ReferenceRepository serves the lookup tables with no lifecycle of their
// own: departments and semesters.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListDepartments returns every department.
func (r *ReferenceRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT department_id, department_name FROM departments ORDER BY department_name`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindDepartment returns a department by ID.
func (r *ReferenceRepository) FindDepartment(ctx context.Context, id int64) (*models.Department, error) {
	const query = `SELECT department_id, department_name FROM departments WHERE department_id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, translateDBError(err, "find department")
	}
	return &department, nil
}

// ListSemesters returns every semester, most recent first.
func (r *ReferenceRepository) ListSemesters(ctx context.Context) ([]models.Semester, error) {
	const query = `SELECT semester_id, term, year FROM semesters ORDER BY year DESC, term DESC`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindSemester returns a semester by ID.
func (r *ReferenceRepository) FindSemester(ctx context.Context, id int64) (*models.Semester, error) {
	const query = `SELECT semester_id, term, year FROM semesters WHERE semester_id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, translateDBError(err, "find semester")
	}
	return &semester, nil
}

// FindSemesterTx is the transactional variant used by the admission path.
func (r *ReferenceRepository) FindSemesterTx(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Semester, error) {
	const query = `SELECT semester_id, term, year FROM semesters WHERE semester_id = $1`
	var semester models.Semester
	if err := sqlx.GetContext(ctx, q, &semester, query, id); err != nil {
		return nil, translateDBError(err, "find semester")
	}
	return &semester, nil
}
