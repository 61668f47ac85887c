package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/model"
	"github.com/studkit/examcore/internal/repository"
)

var (
	// ErrQuestionNotFound means no live question matched the given id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionInUse means the question is still linked to tests.
	ErrQuestionInUse = errors.New("question is linked to tests")
)

// QuestionService handles the versioned question bank. Editing appends a
// new version; issued attempts stay pinned to the version they started
// with, so an edit never changes a grade already in flight.
type QuestionService struct {
	questions *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questions: questions}
}

// Create makes a new question authored by the caller, at version 1.
func (s *QuestionService) Create(ctx context.Context, cred *auth.Credential, title, questionText string, options json.RawMessage, correctIndex int) (*model.Question, *model.QuestionVersion, error) {
	q := &model.Question{
		ID:       uuid.New().String(),
		AuthorID: cred.SubjectID,
	}
	v := &model.QuestionVersion{
		Title:              title,
		QuestionText:       questionText,
		Options:            options,
		CorrectAnswerIndex: correctIndex,
	}
	if err := s.questions.Create(ctx, q, v); err != nil {
		return nil, nil, fmt.Errorf("create question: %w", err)
	}
	return q, v, nil
}

// Edit appends a new version of a question. Author or Admin only.
func (s *QuestionService) Edit(ctx context.Context, cred *auth.Credential, questionID, title, questionText string, options json.RawMessage, correctIndex int) (*model.QuestionVersion, error) {
	if err := s.requireAuthor(ctx, cred, questionID); err != nil {
		return nil, err
	}
	v := &model.QuestionVersion{
		QuestionID:         questionID,
		Title:              title,
		QuestionText:       questionText,
		Options:            options,
		CorrectAnswerIndex: correctIndex,
	}
	if err := s.questions.AddVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("add version: %w", err)
	}
	return v, nil
}

// GetLatest retrieves a question with its newest version.
func (s *QuestionService) GetLatest(ctx context.Context, questionID string) (*model.Question, *model.QuestionVersion, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrQuestionNotFound
		}
		return nil, nil, fmt.Errorf("get question: %w", err)
	}
	v, err := s.questions.GetLatestVersion(ctx, questionID)
	if err != nil {
		return nil, nil, fmt.Errorf("get latest version: %w", err)
	}
	return q, v, nil
}

// GetVersion retrieves one pinned version of a question.
func (s *QuestionService) GetVersion(ctx context.Context, questionID string, version int) (*model.QuestionVersion, error) {
	v, err := s.questions.GetVersion(ctx, questionID, version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// List retrieves live questions at their latest versions. An empty
// authorID lists every author's questions.
func (s *QuestionService) List(ctx context.Context, authorID string) ([]model.QuestionListing, error) {
	return s.questions.ListLatest(ctx, authorID)
}

// Delete soft-deletes a question. Refused while any test still links it,
// so live tests never lose questions out from under them.
func (s *QuestionService) Delete(ctx context.Context, cred *auth.Credential, questionID string) error {
	if err := s.requireAuthor(ctx, cred, questionID); err != nil {
		return err
	}
	used, err := s.questions.UsageCount(ctx, questionID)
	if err != nil {
		return fmt.Errorf("check usage: %w", err)
	}
	if used > 0 {
		return ErrQuestionInUse
	}
	if err := s.questions.SoftDelete(ctx, questionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// VisibleToStudent reports whether a student holds an attempt containing
// the question.
func (s *QuestionService) VisibleToStudent(ctx context.Context, studentID, questionID string) (bool, error) {
	return s.questions.HasAttemptWith(ctx, studentID, questionID)
}

func (s *QuestionService) requireAuthor(ctx context.Context, cred *auth.Credential, questionID string) error {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("get question: %w", err)
	}
	if cred.Role != auth.RoleAdmin && q.AuthorID != cred.SubjectID {
		return ErrNotOwner
	}
	return nil
}
