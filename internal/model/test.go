package model

// Test represents an assessment inside a course. Owned by the course's
// teacher. Inactive at creation; students can only start attempts while
// it is active. Soft-deleted, never physically removed.
type Test struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id"`
	Title     string `json:"title"`
	IsActive  bool   `json:"is_active"`
	IsDeleted bool   `json:"-"`
}
