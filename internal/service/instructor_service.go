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

type instructorRepository interface {
	List(ctx context.Context, filter models.InstructorFilter) ([]models.InstructorDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.Instructor, error)
	FindDetailByID(ctx context.Context, id int64) (*models.InstructorDetail, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
}

// SaveInstructorRequest describes instructor creation and edits.
type SaveInstructorRequest struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Title        string `json:"title"`
	DepartmentID int64  `json:"department_id" validate:"required"`
}

// InstructorService handles instructor CRUD. Deactivation lives in the
// cascade orchestrator because it cancels courses transitively.
type InstructorService struct {
	repo        instructorRepository
	departments departmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewInstructorService constructs InstructorService.
func NewInstructorService(repo instructorRepository, departments departmentReader, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{repo: repo, departments: departments, validator: validate, logger: logger}
}

// List returns instructors with pagination metadata.
func (s *InstructorService) List(ctx context.Context, filter models.InstructorFilter) ([]models.InstructorDetail, *models.Pagination, error) {
	instructors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return instructors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Detail returns an instructor with department info.
func (s *InstructorService) Detail(ctx context.Context, id int64) (*models.InstructorDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return detail, nil
}

// Create registers a new instructor.
func (s *InstructorService) Create(ctx context.Context, req SaveInstructorRequest) (*models.InstructorDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	if _, err := s.departments.FindDepartment(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	instructor := &models.Instructor{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Title:        req.Title,
		DepartmentID: req.DepartmentID,
		Status:       models.StatusActive,
	}
	if err := s.repo.Create(ctx, instructor); err != nil {
		return nil, translateOrInternal(err, "failed to create instructor")
	}
	detail, err := s.repo.FindDetailByID(ctx, instructor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor detail")
	}
	return detail, nil
}

// Update edits an existing instructor.
func (s *InstructorService) Update(ctx context.Context, id int64, req SaveInstructorRequest) (*models.InstructorDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	instructor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if _, err := s.departments.FindDepartment(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	instructor.FirstName = req.FirstName
	instructor.LastName = req.LastName
	instructor.Email = req.Email
	instructor.Title = req.Title
	instructor.DepartmentID = req.DepartmentID
	if err := s.repo.Update(ctx, instructor); err != nil {
		return nil, translateOrInternal(err, "failed to update instructor")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor detail")
	}
	return detail, nil
}
