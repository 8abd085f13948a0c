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

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type instructorReader interface {
	FindByID(ctx context.Context, id int64) (*models.Instructor, error)
}

type rosterReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// CreateCourseRequest describes course creation.
type CreateCourseRequest struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Credits      int    `json:"credits" validate:"required,gt=0"`
	Level        string `json:"level"`
	Capacity     int    `json:"capacity" validate:"required,gt=0"`
	DepartmentID int64  `json:"department_id" validate:"required"`
	InstructorID int64  `json:"instructor_id" validate:"required"`
}

// UpdateCourseRequest describes course edits. Capacity may shrink below
// the current enrolled count; admission simply rejects new students until
// attrition frees seats, historical enrollments are never touched.
type UpdateCourseRequest struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Credits      int    `json:"credits" validate:"required,gt=0"`
	Level        string `json:"level"`
	Capacity     int    `json:"capacity" validate:"required,gt=0"`
	DepartmentID int64  `json:"department_id" validate:"required"`
	InstructorID int64  `json:"instructor_id" validate:"required"`
}

// CourseService handles course CRUD and roster reads. Deactivation lives
// in the cascade orchestrator.
type CourseService struct {
	repo        courseRepository
	departments departmentReader
	instructors instructorReader
	roster      rosterReader
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, departments departmentReader, instructors instructorReader, roster rosterReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, departments: departments, instructors: instructors, roster: roster, cache: cache, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Detail returns the course with its derived enrolled count, served from
// the cache when possible.
func (s *CourseService) Detail(ctx context.Context, id int64) (*models.CourseDetail, error) {
	key := CourseKey(id, "detail")
	var cached models.CourseDetail
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	_ = s.cache.Set(ctx, key, detail, 0)
	return detail, nil
}

// Roster returns the currently Enrolled students of a course.
func (s *CourseService) Roster(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error) {
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	enrollments, _, err := s.roster.List(ctx, models.EnrollmentFilter{
		CourseID: courseID,
		Status:   models.EnrollmentStatusEnrolled,
		PageSize: 100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return enrollments, nil
}

// Create registers a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if err := s.checkReferences(ctx, req.DepartmentID, req.InstructorID); err != nil {
		return nil, err
	}
	course := &models.Course{
		Code:         req.Code,
		Name:         req.Name,
		Credits:      req.Credits,
		Level:        req.Level,
		Capacity:     req.Capacity,
		DepartmentID: req.DepartmentID,
		InstructorID: req.InstructorID,
		Status:       models.StatusActive,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, translateOrInternal(err, "failed to create course")
	}
	detail, err := s.repo.FindDetailByID(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course detail")
	}
	return detail, nil
}

// Update edits an existing course and drops its cached payloads.
func (s *CourseService) Update(ctx context.Context, id int64, req UpdateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.checkReferences(ctx, req.DepartmentID, req.InstructorID); err != nil {
		return nil, err
	}
	course.Code = req.Code
	course.Name = req.Name
	course.Credits = req.Credits
	course.Level = req.Level
	course.Capacity = req.Capacity
	course.DepartmentID = req.DepartmentID
	course.InstructorID = req.InstructorID
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, translateOrInternal(err, "failed to update course")
	}
	if err := s.cache.InvalidateCourse(ctx, id); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Int64("course_id", id), zap.Error(err))
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course detail")
	}
	return detail, nil
}

func (s *CourseService) checkReferences(ctx context.Context, departmentID, instructorID int64) error {
	if _, err := s.departments.FindDepartment(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	instructor, err := s.instructors.FindByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor.Status != models.StatusActive {
		return appErrors.Clone(appErrors.ErrInvalidState, "instructor is not active")
	}
	return nil
}
