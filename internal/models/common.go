package models

// EntityStatus is the soft-delete lifecycle shared by students, courses
// and instructors. Records are never physically removed.
type EntityStatus string

const (
	StatusActive   EntityStatus = "Active"
	StatusInactive EntityStatus = "Inactive"
)

// Pagination describes list response metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
