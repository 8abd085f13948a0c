package models

// Department is reference data with no lifecycle of its own.
type Department struct {
	ID   int64  `db:"department_id" json:"id"`
	Name string `db:"department_name" json:"name"`
}

// Semester is immutable reference data identifying an academic term.
type Semester struct {
	ID   int64  `db:"semester_id" json:"id"`
	Term string `db:"term" json:"term"`
	Year int    `db:"year" json:"year"`
}
