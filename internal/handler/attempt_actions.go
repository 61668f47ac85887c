package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/model"
	"github.com/studkit/examcore/internal/response"
	"github.com/studkit/examcore/internal/service"
)

// AttemptActions handles the attempt lifecycle actions.
type AttemptActions struct {
	attempts *service.AttemptService
	tests    *service.TestService
	log      zerolog.Logger
}

// NewAttemptActions creates a new AttemptActions group.
func NewAttemptActions(attempts *service.AttemptService, tests *service.TestService, log zerolog.Logger) *AttemptActions {
	return &AttemptActions{
		attempts: attempts,
		tests:    tests,
		log:      log.With().Str("component", "attempt_actions").Logger(),
	}
}

// Create starts (or resumes) the caller's attempt at a test. A repeat
// call returns the same attempt id; a snapshot shortfall is reported as
// a partial status with the row counts.
func (h *AttemptActions) Create(c *gin.Context, cred *auth.Credential) string {
	testID := c.Query("Test_ID")
	result, err := h.attempts.Create(c.Request.Context(), cred.SubjectID, testID)
	if err != nil {
		if errors.Is(err, service.ErrTestUnavailable) {
			return response.JSONError("Test is not active")
		}
		h.log.Error().Err(err).Str("test_id", testID).Msg("attempt create failed")
		return response.JSONError("Create attempt failed")
	}

	if result.Partial() {
		return response.JSON(struct {
			Status          string `json:"status"`
			AttemptID       int64  `json:"attempt_id"`
			AnswersExpected int    `json:"answers_expected"`
			AnswersCreated  int    `json:"answers_created"`
		}{"partial", result.AttemptID, result.ExpectedAnswers, result.InsertedAnswers})
	}
	return response.SuccessFields(map[string]interface{}{"attempt_id": result.AttemptID})
}

// View returns the caller's attempt at a test: each snapshot row's
// selected index, plus the attempt status. Correct answers are never
// included.
func (h *AttemptActions) View(c *gin.Context, cred *auth.Credential) string {
	ctx := c.Request.Context()

	attempt, err := h.attempts.GetForStudent(ctx, cred.SubjectID, c.Query("Test_ID"))
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			return response.JSONError("Attempt not found")
		}
		return response.JSONError("Storage operation failed")
	}

	answers, err := h.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("answer listing failed")
		return response.JSONError("Storage operation failed")
	}

	type answerEntry struct {
		QuestionID  string `json:"question_id"`
		AnswerIndex int    `json:"answer_index"`
	}
	out := struct {
		Answers []answerEntry       `json:"answers"`
		Status  model.AttemptStatus `json:"status"`
	}{Answers: []answerEntry{}, Status: attempt.Status}
	for _, a := range answers {
		out.Answers = append(out.Answers, answerEntry{QuestionID: a.QuestionID, AnswerIndex: a.SelectedAnswerIndex})
	}
	return response.JSON(out)
}

// UpdateAnswer records a selected option on one snapshot row. A missing
// Answer_Index clears the answer back to unanswered. No matching row is
// a soft warning, not a failure.
func (h *AttemptActions) UpdateAnswer(c *gin.Context, cred *auth.Credential) string {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return response.Errorf(response.CodeValidation, "Attempt ID must be a number")
	}

	answerIndex := model.UnansweredIndex
	if raw := c.Query("Answer_Index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return response.Errorf(response.CodeValidation, "Answer_Index must be a number")
		}
		answerIndex = parsed
	}

	updated, err := h.attempts.UpdateAnswer(c.Request.Context(), attemptID, c.Query("Question_ID"), answerIndex)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			return response.JSONError("Attempt not found")
		}
		h.log.Error().Err(err).Int64("attempt_id", attemptID).Msg("answer update failed")
		return response.JSONError("Update failed")
	}
	if !updated {
		h.log.Warn().Int64("attempt_id", attemptID).Str("question_id", c.Query("Question_ID")).Msg("no answer row matched")
		return response.JSON(struct {
			Status string `json:"status"`
		}{"warning_no_row_updated"})
	}
	return response.SuccessFields(nil)
}

// Complete grades an attempt and writes its terminal state.
func (h *AttemptActions) Complete(c *gin.Context, cred *auth.Credential) string {
	attemptID, ok := parseAttemptID(c)
	if !ok {
		return response.Errorf(response.CodeValidation, "Attempt ID must be a number")
	}

	result, err := h.attempts.Complete(c.Request.Context(), attemptID)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			return response.JSONError("Attempt not found")
		}
		h.log.Error().Err(err).Int64("attempt_id", attemptID).Msg("attempt completion failed")
		return response.JSONError("Save grade failed")
	}
	return response.SuccessFields(map[string]interface{}{
		"score":     result.Correct,
		"max_score": result.Total,
	})
}

// ViewByTest lists the attempts at a test for its owning teacher.
func (h *AttemptActions) ViewByTest(c *gin.Context, cred *auth.Credential) string {
	testID := c.Query("Test_ID")
	ctx := c.Request.Context()

	owns, err := h.tests.Owns(ctx, cred, testID)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			return response.JSONError("Test not found")
		}
		return response.JSONError("Storage operation failed")
	}
	if !owns {
		return response.JSONError("No permission")
	}

	summaries, err := h.attempts.ListByTest(ctx, testID)
	if err != nil {
		h.log.Error().Err(err).Str("test_id", testID).Msg("attempt listing failed")
		return response.JSONError("Storage operation failed")
	}

	out := struct {
		Attempts []attemptSummaryEntry `json:"attempts"`
	}{Attempts: []attemptSummaryEntry{}}
	for _, s := range summaries {
		out.Attempts = append(out.Attempts, attemptSummaryEntry{
			StudentID:  s.StudentID,
			Score:      s.Score,
			Percentage: s.Percentage,
			Status:     s.Status,
		})
	}
	return response.JSON(out)
}

type attemptSummaryEntry struct {
	StudentID  string              `json:"student_id"`
	Score      *int                `json:"score"`
	Percentage *int                `json:"percentage"`
	Status     model.AttemptStatus `json:"status"`
}

func parseAttemptID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Query("Attempt_ID"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
