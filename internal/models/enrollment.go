package models

// EnrollmentStatus represents the lifecycle of an enrollment. Enrolled is
// the only non-terminal status; every other status keeps the row as
// history and a re-enrollment inserts a fresh row.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled        EnrollmentStatus = "Enrolled"
	EnrollmentStatusCompleted       EnrollmentStatus = "Completed"
	EnrollmentStatusDroppedInactive EnrollmentStatus = "Dropped_Inactive"
	EnrollmentStatusCourseCancelled EnrollmentStatus = "Course_Cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusCompleted ||
		s == EnrollmentStatusDroppedInactive ||
		s == EnrollmentStatusCourseCancelled
}

// Enrollment captures a student's registration in a course for a semester.
// Grade is set exactly when status is Completed.
type Enrollment struct {
	ID         int64            `db:"enrollment_id" json:"id"`
	StudentID  int64            `db:"student_id" json:"student_id"`
	CourseID   int64            `db:"course_id" json:"course_id"`
	SemesterID int64            `db:"semester_id" json:"semester_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Grade      *string          `db:"grade" json:"grade,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student, course and semester info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
	Term        string `db:"term" json:"term"`
	Year        int    `db:"year" json:"year"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  int64
	CourseID   int64
	SemesterID int64
	Status     EnrollmentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CascadeResult reports how many records a deactivation cascade touched.
type CascadeResult struct {
	CoursesDeactivated   int `json:"courses_deactivated"`
	EnrollmentsCancelled int `json:"enrollments_cancelled"`
	EnrollmentsDropped   int `json:"enrollments_dropped"`
}
