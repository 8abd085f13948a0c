package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	FindDetailByID(ctx context.Context, id int64) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type departmentReader interface {
	FindDepartment(ctx context.Context, id int64) (*models.Department, error)
}

type studentHistoryReader interface {
	ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error)
}

// CreateStudentRequest describes student creation.
type CreateStudentRequest struct {
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	DepartmentID   int64  `json:"department_id" validate:"required"`
	EnrollmentYear int    `json:"enrollment_year" validate:"required"`
}

// UpdateStudentRequest describes student edits.
type UpdateStudentRequest struct {
	FirstName      string   `json:"first_name" validate:"required"`
	LastName       string   `json:"last_name" validate:"required"`
	Email          string   `json:"email" validate:"required,email"`
	DepartmentID   int64    `json:"department_id" validate:"required"`
	EnrollmentYear int      `json:"enrollment_year" validate:"required"`
	GPA            *float64 `json:"gpa,omitempty"`
}

// StudentProfile bundles a student with their enrollment history.
type StudentProfile struct {
	Student     models.StudentDetail      `json:"student"`
	Enrollments []models.EnrollmentDetail `json:"enrollments"`
}

// StudentService handles student CRUD. Deactivation is not here: it
// belongs to the cascade orchestrator so enrollments drop atomically.
type StudentService struct {
	repo        studentRepository
	departments departmentReader
	history     studentHistoryReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, departments departmentReader, history studentHistoryReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, departments: departments, history: history, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Profile returns the student with their full enrollment history.
func (s *StudentService) Profile(ctx context.Context, id int64) (*StudentProfile, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.history.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment history")
	}
	return &StudentProfile{Student: *detail, Enrollments: enrollments}, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.departments.FindDepartment(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	student := &models.Student{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		DepartmentID:   req.DepartmentID,
		EnrollmentYear: req.EnrollmentYear,
		Status:         models.StatusActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, translateOrInternal(err, "failed to create student")
	}
	detail, err := s.repo.FindDetailByID(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student detail")
	}
	return detail, nil
}

// Update edits an existing student.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.departments.FindDepartment(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Email = req.Email
	student.DepartmentID = req.DepartmentID
	student.EnrollmentYear = req.EnrollmentYear
	student.GPA = req.GPA
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, translateOrInternal(err, "failed to update student")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student detail")
	}
	return detail, nil
}
