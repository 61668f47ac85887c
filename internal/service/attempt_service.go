package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/grading"
	"github.com/studkit/examcore/internal/model"
	"github.com/studkit/examcore/internal/repository"
)

var (
	// ErrTestUnavailable means the test is missing, soft-deleted, or inactive.
	ErrTestUnavailable = errors.New("test is not available")
	// ErrAttemptNotFound means no attempt matched the given id.
	ErrAttemptNotFound = errors.New("attempt not found")
)

// AttemptStore is the storage surface the attempt lifecycle needs.
type AttemptStore interface {
	GetByStudentAndTest(ctx context.Context, studentID, testID string) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	SnapshotQuestions(ctx context.Context, attemptID int64, testID string) (expected, inserted int, err error)
	UpdateAnswer(ctx context.Context, attemptID int64, questionID string, selectedIndex int) (bool, error)
	ListAnswers(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error)
	AnswerKey(ctx context.Context, attemptID int64) ([]grading.Answer, error)
	Complete(ctx context.Context, attemptID int64, res grading.Result) error
	GetByID(ctx context.Context, id int64) (*model.Attempt, error)
	ListByTest(ctx context.Context, testID string) ([]repository.AttemptSummary, error)
	ListGrades(ctx context.Context, studentID, courseID string) ([]repository.GradeRow, error)
}

// TestReader is the read-only view of tests the lifecycle needs.
type TestReader interface {
	GetByID(ctx context.Context, id string) (*model.Test, error)
}

// CreateAttemptResult reports the outcome of a create call. Existing is
// true when the caller got an attempt that was already there. A shortfall
// between ExpectedAnswers and InsertedAnswers marks a partial success:
// the attempt exists but some answer rows are missing.
type CreateAttemptResult struct {
	AttemptID       int64
	Existing        bool
	ExpectedAnswers int
	InsertedAnswers int
}

// Partial reports whether the snapshot came up short of the question set.
func (r CreateAttemptResult) Partial() bool {
	return !r.Existing && r.InsertedAnswers < r.ExpectedAnswers
}

// AttemptService drives the attempt state machine: Uncreated to
// InProgress to Completed, with Completed terminal.
type AttemptService struct {
	attempts AttemptStore
	tests    TestReader
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(attempts AttemptStore, tests TestReader, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		tests:    tests,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
}

// Create starts an attempt for (student, test), or returns the one that
// already exists in any state. At most one attempt ever exists per pair:
// the insert rides on the storage uniqueness constraint, and a lost race
// falls back to re-reading the winner's row, so a well-behaved concurrent
// caller never sees an error.
func (s *AttemptService) Create(ctx context.Context, studentID, testID string) (CreateAttemptResult, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreateAttemptResult{}, ErrTestUnavailable
		}
		return CreateAttemptResult{}, fmt.Errorf("get test: %w", err)
	}
	if !test.IsActive {
		return CreateAttemptResult{}, ErrTestUnavailable
	}

	existing, err := s.attempts.GetByStudentAndTest(ctx, studentID, testID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return CreateAttemptResult{}, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		return CreateAttemptResult{AttemptID: existing.ID, Existing: true}, nil
	}

	attempt := &model.Attempt{StudentID: studentID, TestID: testID}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent create won the insert; use its row.
			winner, fetchErr := s.attempts.GetByStudentAndTest(ctx, studentID, testID)
			if fetchErr != nil {
				return CreateAttemptResult{}, fmt.Errorf("concurrent create detected, but fetch failed: %w", fetchErr)
			}
			return CreateAttemptResult{AttemptID: winner.ID, Existing: true}, nil
		}
		return CreateAttemptResult{}, fmt.Errorf("create attempt: %w", err)
	}

	expected, inserted, err := s.attempts.SnapshotQuestions(ctx, attempt.ID, testID)
	if err != nil {
		// The attempt row exists; report it with an empty snapshot
		// rather than failing the create.
		s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("question snapshot failed")
		return CreateAttemptResult{AttemptID: attempt.ID}, nil
	}
	if inserted < expected {
		s.log.Warn().
			Int64("attempt_id", attempt.ID).
			Int("expected", expected).
			Int("inserted", inserted).
			Msg("attempt created with incomplete answer snapshot")
	}

	return CreateAttemptResult{
		AttemptID:       attempt.ID,
		ExpectedAnswers: expected,
		InsertedAnswers: inserted,
	}, nil
}

// UpdateAnswer records a selection on one snapshot row. Returns false
// with a nil error when no row matched (wrong question, or question not
// in the snapshot); callers surface that as a warning, not a failure.
// Updates against a completed attempt are accepted unchanged and only
// logged: recorded answers move but the stored grade does not, until a
// subsequent Complete re-grades.
func (s *AttemptService) UpdateAnswer(ctx context.Context, attemptID int64, questionID string, selectedIndex int) (bool, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrAttemptNotFound
		}
		return false, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status == model.AttemptStatusCompleted {
		s.log.Warn().
			Int64("attempt_id", attemptID).
			Str("question_id", questionID).
			Msg("answer updated on completed attempt")
	}

	updated, err := s.attempts.UpdateAnswer(ctx, attemptID, questionID, selectedIndex)
	if err != nil {
		return false, fmt.Errorf("update answer: %w", err)
	}
	return updated, nil
}

// Complete grades the attempt against its pinned question versions and
// writes the terminal state. Completing twice re-grades and overwrites.
func (s *AttemptService) Complete(ctx context.Context, attemptID int64) (grading.Result, error) {
	if _, err := s.attempts.GetByID(ctx, attemptID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return grading.Result{}, ErrAttemptNotFound
		}
		return grading.Result{}, fmt.Errorf("get attempt: %w", err)
	}

	answers, err := s.attempts.AnswerKey(ctx, attemptID)
	if err != nil {
		return grading.Result{}, fmt.Errorf("load answer key: %w", err)
	}

	result := grading.Grade(answers)
	if err := s.attempts.Complete(ctx, attemptID, result); err != nil {
		return grading.Result{}, fmt.Errorf("write completion: %w", err)
	}
	return result, nil
}

// Get retrieves an attempt by id.
func (s *AttemptService) Get(ctx context.Context, attemptID int64) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// GetForStudent retrieves the attempt of a (student, test) pair.
func (s *AttemptService) GetForStudent(ctx context.Context, studentID, testID string) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByStudentAndTest(ctx, studentID, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// ListAnswers retrieves an attempt's snapshot rows.
func (s *AttemptService) ListAnswers(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error) {
	if _, err := s.attempts.GetByID(ctx, attemptID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return s.attempts.ListAnswers(ctx, attemptID)
}

// ListByTest retrieves attempt summaries for one test.
func (s *AttemptService) ListByTest(ctx context.Context, testID string) ([]repository.AttemptSummary, error) {
	return s.attempts.ListByTest(ctx, testID)
}

// ListGrades retrieves a student's completed grades within a course.
func (s *AttemptService) ListGrades(ctx context.Context, studentID, courseID string) ([]repository.GradeRow, error) {
	return s.attempts.ListGrades(ctx, studentID, courseID)
}
