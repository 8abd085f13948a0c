package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
	"github.com/univreg/registrar-api/pkg/export"
)

// Export formats supported by the report endpoints.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type exportCourseReader interface {
	FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error)
}

type exportStudentReader interface {
	FindDetailByID(ctx context.Context, id int64) (*models.StudentDetail, error)
}

// ExportFile carries rendered report bytes with download metadata.
type ExportFile struct {
	Name        string
	ContentType string
	Bytes       []byte
}

// ExportService renders course rosters and student transcripts as
// downloadable CSV or PDF files.
type ExportService struct {
	courses     exportCourseReader
	students    exportStudentReader
	enrollments rosterReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	institution string
	enabled     bool
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(courses exportCourseReader, students exportStudentReader, enrollments rosterReader, institution string, enabled bool, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		courses:     courses,
		students:    students,
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		institution: institution,
		enabled:     enabled,
		logger:      logger,
	}
}

// CourseRoster renders the active roster of a course.
func (s *ExportService) CourseRoster(ctx context.Context, courseID int64, format string) (*ExportFile, error) {
	if err := s.checkFormat(format); err != nil {
		return nil, err
	}
	course, err := s.courses.FindDetailByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	roster, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		CourseID: courseID,
		Status:   models.EnrollmentStatusEnrolled,
		PageSize: -1,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	data := export.Dataset{Headers: []string{"Student ID", "Student", "Term", "Year", "Status"}}
	for _, row := range roster {
		data.Rows = append(data.Rows, map[string]string{
			"Student ID": strconv.FormatInt(row.StudentID, 10),
			"Student":    row.StudentName,
			"Term":       row.Term,
			"Year":       strconv.Itoa(row.Year),
			"Status":     string(row.Status),
		})
	}
	title := fmt.Sprintf("Roster - %s %s", course.Code, course.Name)
	return s.render(data, format, fmt.Sprintf("roster-%s", course.Code), title)
}

// StudentTranscript renders a student's full enrollment history with grades.
func (s *ExportService) StudentTranscript(ctx context.Context, studentID int64, format string) (*ExportFile, error) {
	if err := s.checkFormat(format); err != nil {
		return nil, err
	}
	student, err := s.students.FindDetailByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	history, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{StudentID: studentID, PageSize: -1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment history")
	}

	data := export.Dataset{Headers: []string{"Course", "Title", "Term", "Year", "Status", "Grade"}}
	for _, row := range history {
		grade := ""
		if row.Grade != nil {
			grade = *row.Grade
		}
		data.Rows = append(data.Rows, map[string]string{
			"Course": row.CourseCode,
			"Title":  row.CourseName,
			"Term":   row.Term,
			"Year":   strconv.Itoa(row.Year),
			"Status": string(row.Status),
			"Grade":  grade,
		})
	}
	title := fmt.Sprintf("Transcript - %s %s", student.FirstName, student.LastName)
	return s.render(data, format, fmt.Sprintf("transcript-%d", student.ID), title)
}

func (s *ExportService) checkFormat(format string) error {
	if !s.enabled {
		return appErrors.Clone(appErrors.ErrValidation, "exports are disabled")
	}
	switch format {
	case ExportFormatCSV, ExportFormatPDF:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *ExportService) render(data export.Dataset, format, stem, title string) (*ExportFile, error) {
	// random suffix keeps repeated downloads from colliding in download dirs
	name := fmt.Sprintf("%s-%s.%s", stem, strings.Split(uuid.NewString(), "-")[0], format)
	switch format {
	case ExportFormatPDF:
		content, err := s.pdf.Render(data, title, s.institution)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{Name: name, ContentType: "application/pdf", Bytes: content}, nil
	default:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{Name: name, ContentType: "text/csv", Bytes: content}, nil
	}
}
