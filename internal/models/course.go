package models

// Course represents an offered course with a bounded capacity.
type Course struct {
	ID           int64        `db:"course_id" json:"id"`
	Code         string       `db:"course_code" json:"code"`
	Name         string       `db:"course_name" json:"name"`
	Credits      int          `db:"credits" json:"credits"`
	Level        string       `db:"level" json:"level"`
	Capacity     int          `db:"capacity" json:"capacity"`
	DepartmentID int64        `db:"department_id" json:"department_id"`
	InstructorID int64        `db:"instructor_id" json:"instructor_id"`
	Status       EntityStatus `db:"status" json:"status"`
}

// CourseDetail extends Course with department and instructor names plus
// the live count of Enrolled rows. The count is always derived from the
// enrollments table, never stored on the course.
type CourseDetail struct {
	Course
	DepartmentName string `db:"department_name" json:"department_name"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	EnrolledCount  int    `db:"enrolled_count" json:"enrolled_count"`
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	Search       string
	DepartmentID int64
	InstructorID int64
	Level        string
	Status       EntityStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
