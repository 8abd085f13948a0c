package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

type referenceRepository interface {
	ListDepartments(ctx context.Context) ([]models.Department, error)
	ListSemesters(ctx context.Context) ([]models.Semester, error)
}

// ReferenceService serves the lookup tables used by enrollment forms.
type ReferenceService struct {
	repo   referenceRepository
	logger *zap.Logger
}

// NewReferenceService constructs ReferenceService.
func NewReferenceService(repo referenceRepository, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{repo: repo, logger: logger}
}

// Departments lists all departments.
func (s *ReferenceService) Departments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// Semesters lists all academic terms.
func (s *ReferenceService) Semesters(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.repo.ListSemesters(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}
