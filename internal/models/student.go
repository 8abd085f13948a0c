package models

// Student represents a learner registered with the institution.
type Student struct {
	ID             int64        `db:"student_id" json:"id"`
	FirstName      string       `db:"first_name" json:"first_name"`
	LastName       string       `db:"last_name" json:"last_name"`
	Email          string       `db:"email" json:"email"`
	DepartmentID   int64        `db:"department_id" json:"department_id"`
	EnrollmentYear int          `db:"enrollment_year" json:"enrollment_year"`
	GPA            *float64     `db:"gpa" json:"gpa,omitempty"`
	Status         EntityStatus `db:"status" json:"status"`
}

// StudentDetail enriches Student with department info.
type StudentDetail struct {
	Student
	DepartmentName string `db:"department_name" json:"department_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search       string
	DepartmentID int64
	Status       EntityStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
