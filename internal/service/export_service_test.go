package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univreg/registrar-api/internal/models"
	appErrors "github.com/univreg/registrar-api/pkg/errors"
)

type mockExportCourseReader struct {
	detail *models.CourseDetail
}

func (m *mockExportCourseReader) FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

type mockExportStudentReader struct {
	detail *models.StudentDetail
}

func (m *mockExportStudentReader) FindDetailByID(ctx context.Context, id int64) (*models.StudentDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

type mockRosterReader struct {
	rows       []models.EnrollmentDetail
	lastFilter models.EnrollmentFilter
}

func (m *mockRosterReader) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.lastFilter = filter
	return m.rows, len(m.rows), nil
}

func exportFixtures() (*mockExportCourseReader, *mockExportStudentReader, *mockRosterReader) {
	grade := "A"
	courses := &mockExportCourseReader{detail: &models.CourseDetail{
		Course: models.Course{ID: 20, Code: "CS101", Name: "Intro to CS"},
	}}
	students := &mockExportStudentReader{detail: &models.StudentDetail{
		Student: models.Student{ID: 10, FirstName: "Ada", LastName: "Lovelace"},
	}}
	roster := &mockRosterReader{rows: []models.EnrollmentDetail{
		{
			Enrollment:  models.Enrollment{ID: 7, StudentID: 10, Status: models.EnrollmentStatusCompleted, Grade: &grade},
			StudentName: "Ada Lovelace",
			CourseCode:  "CS101",
			CourseName:  "Intro to CS",
			Term:        "Fall",
			Year:        2025,
		},
	}}
	return courses, students, roster
}

func TestCourseRosterCSV(t *testing.T) {
	courses, students, roster := exportFixtures()
	svc := NewExportService(courses, students, roster, "Example University", true, nil)

	file, err := svc.CourseRoster(context.Background(), 20, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Name, ".csv"), file.Name)

	content := string(file.Bytes)
	assert.Contains(t, content, "Student ID,Student,Term,Year,Status")
	assert.Contains(t, content, "Ada Lovelace")
	assert.Equal(t, models.EnrollmentStatusEnrolled, roster.lastFilter.Status)
	assert.Equal(t, int64(20), roster.lastFilter.CourseID)
}

func TestStudentTranscriptIncludesGrades(t *testing.T) {
	courses, students, roster := exportFixtures()
	svc := NewExportService(courses, students, roster, "Example University", true, nil)

	file, err := svc.StudentTranscript(context.Background(), 10, "csv")
	require.NoError(t, err)

	content := string(file.Bytes)
	assert.Contains(t, content, "Course,Title,Term,Year,Status,Grade")
	assert.Contains(t, content, "CS101")
	assert.Contains(t, content, ",A")
	assert.Equal(t, int64(10), roster.lastFilter.StudentID)
}

func TestTranscriptPDF(t *testing.T) {
	courses, students, roster := exportFixtures()
	svc := NewExportService(courses, students, roster, "Example University", true, nil)

	file, err := svc.StudentTranscript(context.Background(), 10, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Name, ".pdf"), file.Name)
	assert.NotEmpty(t, file.Bytes)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	courses, students, roster := exportFixtures()
	svc := NewExportService(courses, students, roster, "Example University", true, nil)

	_, err := svc.CourseRoster(context.Background(), 20, "xlsx")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportDisabled(t *testing.T) {
	courses, students, roster := exportFixtures()
	svc := NewExportService(courses, students, roster, "Example University", false, nil)

	_, err := svc.CourseRoster(context.Background(), 20, "csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportUnknownCourse(t *testing.T) {
	_, students, roster := exportFixtures()
	svc := NewExportService(&mockExportCourseReader{}, students, roster, "Example University", true, nil)

	_, err := svc.CourseRoster(context.Background(), 99, "csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
