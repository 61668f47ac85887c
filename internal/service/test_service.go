package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/model"
	"github.com/studkit/examcore/internal/repository"
)

var (
	// ErrTestNotFound means no live test matched the given id.
	ErrTestNotFound = errors.New("test not found")
	// ErrTestHasAttempts means the test already has attempts recorded.
	ErrTestHasAttempts = errors.New("test has attempts")
)

// TestService handles test administration: creation inside a course,
// activation toggling, question linking, and deletion. Ownership follows
// the course's teacher; Admin bypasses it.
type TestService struct {
	tests    *repository.TestRepository
	courses  *repository.CourseRepository
	attempts *repository.AttemptRepository
	log      zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests *repository.TestRepository, courses *repository.CourseRepository, attempts *repository.AttemptRepository, log zerolog.Logger) *TestService {
	return &TestService{
		tests:    tests,
		courses:  courses,
		attempts: attempts,
		log:      log.With().Str("component", "test_service").Logger(),
	}
}

// Get retrieves a live test.
func (s *TestService) Get(ctx context.Context, id string) (*model.Test, error) {
	test, err := s.tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return test, nil
}

// Create makes a new inactive test inside a course the caller owns.
func (s *TestService) Create(ctx context.Context, cred *auth.Credential, courseID, title string) (*model.Test, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	if cred.Role != auth.RoleAdmin && course.TeacherID != cred.SubjectID {
		return nil, ErrNotOwner
	}

	test := &model.Test{
		ID:       uuid.New().String(),
		CourseID: courseID,
		Title:    title,
	}
	if err := s.tests.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return test, nil
}

// ListByCourse retrieves the live tests of a course.
func (s *TestService) ListByCourse(ctx context.Context, courseID string) ([]model.Test, error) {
	return s.tests.ListByCourse(ctx, courseID)
}

// SetActive toggles a test's active flag. Deactivating sweeps every
// in-progress attempt of the test to completed in one atomic statement,
// so no attempt keeps running against a closed test.
func (s *TestService) SetActive(ctx context.Context, cred *auth.Credential, testID string, active bool) (bool, error) {
	if err := s.requireOwner(ctx, cred, testID); err != nil {
		return false, err
	}

	stored, err := s.tests.SetActive(ctx, testID, active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrTestNotFound
		}
		return false, fmt.Errorf("set active: %w", err)
	}

	if !stored {
		swept, err := s.attempts.BulkCompleteForTest(ctx, testID)
		if err != nil {
			return stored, fmt.Errorf("complete open attempts: %w", err)
		}
		if swept > 0 {
			s.log.Info().Str("test_id", testID).Int64("attempts", swept).Msg("open attempts closed on deactivation")
		}
	}
	return stored, nil
}

// Delete soft-deletes a test.
func (s *TestService) Delete(ctx context.Context, cred *auth.Credential, testID string) error {
	if err := s.requireOwner(ctx, cred, testID); err != nil {
		return err
	}
	if err := s.tests.SoftDelete(ctx, testID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTestNotFound
		}
		return fmt.Errorf("delete test: %w", err)
	}
	return nil
}

// AddQuestion links a question into a test at the next position.
func (s *TestService) AddQuestion(ctx context.Context, cred *auth.Credential, testID, questionID string) error {
	if err := s.requireOwner(ctx, cred, testID); err != nil {
		return err
	}
	if err := s.tests.AddQuestion(ctx, testID, questionID); err != nil {
		return fmt.Errorf("add question: %w", err)
	}
	return nil
}

// RemoveQuestion unlinks a question from a test. Refused once any
// attempt exists for the test: issued snapshots keep every question they
// were issued with. Removing a question that is not linked reports
// ErrQuestionNotFound.
func (s *TestService) RemoveQuestion(ctx context.Context, cred *auth.Credential, testID, questionID string) error {
	if err := s.requireOwner(ctx, cred, testID); err != nil {
		return err
	}
	hasAttempts, err := s.attempts.HasAttempts(ctx, testID)
	if err != nil {
		return fmt.Errorf("check attempts: %w", err)
	}
	if hasAttempts {
		return ErrTestHasAttempts
	}
	if err := s.tests.RemoveQuestion(ctx, testID, questionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("remove question: %w", err)
	}
	return nil
}

// Owns reports whether the caller owns the test (or is Admin).
func (s *TestService) Owns(ctx context.Context, cred *auth.Credential, testID string) (bool, error) {
	err := s.requireOwner(ctx, cred, testID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotOwner):
		return false, nil
	default:
		return false, err
	}
}

func (s *TestService) requireOwner(ctx context.Context, cred *auth.Credential, testID string) error {
	teacherID, err := s.tests.TeacherOf(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTestNotFound
		}
		return fmt.Errorf("resolve test owner: %w", err)
	}
	if cred.Role != auth.RoleAdmin && teacherID != cred.SubjectID {
		return ErrNotOwner
	}
	return nil
}
