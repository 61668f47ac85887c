package model

import "time"

// Course represents a taught course. Courses are soft-deleted: the row
// stays, queries exclude it.
type Course struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TeacherID   string `json:"teacher_id"`
	IsDeleted   bool   `json:"-"`
}

// Enrollment links a student to a course.
type Enrollment struct {
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
