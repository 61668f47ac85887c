package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/model"
	"github.com/studkit/examcore/internal/repository"
)

var (
	// ErrCourseNotFound means no live course matched the given id.
	ErrCourseNotFound = errors.New("course not found")
	// ErrNotOwner means the caller does not own the targeted resource.
	ErrNotOwner = errors.New("caller does not own this resource")
)

// CourseService handles course and enrollment business logic. Mutations
// are restricted to the owning teacher; Admin bypasses ownership.
type CourseService struct {
	courses *repository.CourseRepository
}

// NewCourseService creates a new CourseService.
func NewCourseService(courses *repository.CourseRepository) *CourseService {
	return &CourseService{courses: courses}
}

// Get retrieves a live course.
func (s *CourseService) Get(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return course, nil
}

// Create makes a new course owned by the caller.
func (s *CourseService) Create(ctx context.Context, cred *auth.Credential, name, description string) (*model.Course, error) {
	course := &model.Course{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		TeacherID:   cred.SubjectID,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return course, nil
}

// List retrieves all live courses.
func (s *CourseService) List(ctx context.Context) ([]model.Course, error) {
	return s.courses.List(ctx)
}

// ListForUser retrieves the courses a user teaches or is enrolled in.
func (s *CourseService) ListForUser(ctx context.Context, userID string) ([]model.Course, error) {
	return s.courses.ListCoursesForUser(ctx, userID)
}

// Update overwrites a course's name and description. Owner or Admin only.
func (s *CourseService) Update(ctx context.Context, cred *auth.Credential, id, name, description string) (*model.Course, error) {
	if err := s.requireOwner(ctx, cred, id); err != nil {
		return nil, err
	}
	course, err := s.courses.Update(ctx, id, name, description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("update course: %w", err)
	}
	return course, nil
}

// Delete soft-deletes a course. Owner or Admin only.
func (s *CourseService) Delete(ctx context.Context, cred *auth.Credential, id string) error {
	if err := s.requireOwner(ctx, cred, id); err != nil {
		return err
	}
	if err := s.courses.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// Enroll adds a student to a course. Re-enrolling is a no-op.
func (s *CourseService) Enroll(ctx context.Context, cred *auth.Credential, studentID, courseID string) error {
	if err := s.requireOwner(ctx, cred, courseID); err != nil {
		return err
	}
	if err := s.courses.Enroll(ctx, studentID, courseID); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// SelfEnroll adds the student to a course on their own initiative, with
// no ownership check.
func (s *CourseService) SelfEnroll(ctx context.Context, studentID, courseID string) error {
	if err := s.courses.Enroll(ctx, studentID, courseID); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// SelfUnenroll removes the student from a course on their own initiative.
func (s *CourseService) SelfUnenroll(ctx context.Context, studentID, courseID string) error {
	if err := s.courses.Unenroll(ctx, studentID, courseID); err != nil {
		return fmt.Errorf("unenroll student: %w", err)
	}
	return nil
}

// Unenroll removes a student from a course.
func (s *CourseService) Unenroll(ctx context.Context, cred *auth.Credential, studentID, courseID string) error {
	if err := s.requireOwner(ctx, cred, courseID); err != nil {
		return err
	}
	if err := s.courses.Unenroll(ctx, studentID, courseID); err != nil {
		return fmt.Errorf("unenroll student: %w", err)
	}
	return nil
}

// ListStudents retrieves the ids of students enrolled in a course.
func (s *CourseService) ListStudents(ctx context.Context, cred *auth.Credential, courseID string) ([]string, error) {
	if err := s.requireOwner(ctx, cred, courseID); err != nil {
		return nil, err
	}
	return s.courses.ListStudents(ctx, courseID)
}

// IsEnrolled reports whether a student is enrolled in a course.
func (s *CourseService) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return s.courses.IsEnrolled(ctx, studentID, courseID)
}

func (s *CourseService) requireOwner(ctx context.Context, cred *auth.Credential, courseID string) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("get course: %w", err)
	}
	if cred.Role != auth.RoleAdmin && course.TeacherID != cred.SubjectID {
		return ErrNotOwner
	}
	return nil
}
