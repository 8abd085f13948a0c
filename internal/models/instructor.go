package models

// Instructor represents a member of the teaching staff.
type Instructor struct {
	ID           int64        `db:"instructor_id" json:"id"`
	FirstName    string       `db:"first_name" json:"first_name"`
	LastName     string       `db:"last_name" json:"last_name"`
	Email        string       `db:"email" json:"email"`
	Title        string       `db:"title" json:"title"`
	DepartmentID int64        `db:"department_id" json:"department_id"`
	Status       EntityStatus `db:"status" json:"status"`
}

// InstructorDetail enriches Instructor with department info.
type InstructorDetail struct {
	Instructor
	DepartmentName string `db:"department_name" json:"department_name"`
}

// InstructorFilter defines filters supported by list endpoints.
type InstructorFilter struct {
	Search       string
	DepartmentID int64
	Status       EntityStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
