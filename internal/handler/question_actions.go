package handler

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/response"
	"github.com/studkit/examcore/internal/service"
	"github.com/studkit/examcore/internal/validator"
)

// wideQuestionListCapability widens the question listing from the
// caller's own questions to every author's.
const wideQuestionListCapability = "quest:list:read"

// QuestionActions handles the versioned question bank actions.
type QuestionActions struct {
	questions *service.QuestionService
	log       zerolog.Logger
}

// NewQuestionActions creates a new QuestionActions group.
func NewQuestionActions(questions *service.QuestionService, log zerolog.Logger) *QuestionActions {
	return &QuestionActions{
		questions: questions,
		log:       log.With().Str("component", "question_actions").Logger(),
	}
}

func questionErr(err error) string {
	switch {
	case errors.Is(err, service.ErrQuestionNotFound):
		return response.JSONError("Question not found")
	case errors.Is(err, service.ErrQuestionInUse):
		return response.JSONError("Question is used in tests")
	case errors.Is(err, service.ErrNotOwner):
		return response.JSONError("No permission")
	default:
		return response.JSONError("Storage operation failed")
	}
}

// View lists questions at their latest versions: the caller's own by
// default, every author's when the wide listing capability is present.
func (h *QuestionActions) View(c *gin.Context, cred *auth.Credential) string {
	authorID := cred.SubjectID
	if cred.HasCapability(wideQuestionListCapability) {
		authorID = ""
	}

	listings, err := h.questions.List(c.Request.Context(), authorID)
	if err != nil {
		h.log.Error().Err(err).Msg("question listing failed")
		return response.JSONError("Storage operation failed")
	}

	out := struct {
		Questions []questionEntry `json:"questions"`
	}{Questions: []questionEntry{}}
	for _, l := range listings {
		out.Questions = append(out.Questions, questionEntry{
			ID:       l.ID,
			Title:    l.Title,
			Version:  l.Version,
			AuthorID: l.AuthorID,
		})
	}
	return response.JSON(out)
}

type questionEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Version  int    `json:"version"`
	AuthorID string `json:"author_id"`
}

// ViewDetail returns one pinned version of a question, visible to its
// author and to students holding an attempt that contains it. The
// Version parameter defaults to 1.
func (h *QuestionActions) ViewDetail(c *gin.Context, cred *auth.Credential) string {
	questionID := c.Query("Question_ID")
	version := 1
	if raw := c.Query("Version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return response.Errorf(response.CodeValidation, "Version must be a number")
		}
		version = parsed
	}

	ctx := c.Request.Context()
	q, _, err := h.questions.GetLatest(ctx, questionID)
	if err != nil {
		return questionErr(err)
	}

	if cred.Role != auth.RoleAdmin && q.AuthorID != cred.SubjectID {
		visible, err := h.questions.VisibleToStudent(ctx, cred.SubjectID, questionID)
		if err != nil {
			h.log.Error().Err(err).Str("question_id", questionID).Msg("visibility check failed")
			return response.JSONError("Storage operation failed")
		}
		if !visible {
			return response.JSONError("No access")
		}
	}

	v, err := h.questions.GetVersion(ctx, questionID, version)
	if err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			return response.JSONError("Version not found")
		}
		return questionErr(err)
	}
	return response.JSON(struct {
		Title              string          `json:"title"`
		QuestionText       string          `json:"question_text"`
		Options            json.RawMessage `json:"options"`
		CorrectAnswerIndex int             `json:"correct_answer_index"`
	}{v.Title, v.QuestionText, v.Options, v.CorrectAnswerIndex})
}

type createQuestionParams struct {
	Title       string `form:"Title" binding:"required"`
	Text        string `form:"Text" binding:"required"`
	Options     string `form:"Options" binding:"required"`
	AnswerIndex int    `form:"Answer_Index"`
}

// Create makes a new question authored by the caller.
func (h *QuestionActions) Create(c *gin.Context, cred *auth.Credential) string {
	var params createQuestionParams
	if fields := validator.BindQuery(c, &params); fields != nil {
		return response.Errorf(response.CodeValidation, "%s", validator.Detail(fields))
	}
	if !json.Valid([]byte(params.Options)) {
		return response.Errorf(response.CodeValidation, "Options must be valid JSON")
	}

	q, _, err := h.questions.Create(c.Request.Context(), cred, params.Title, params.Text, json.RawMessage(params.Options), params.AnswerIndex)
	if err != nil {
		h.log.Error().Err(err).Msg("question create failed")
		return questionErr(err)
	}
	return response.SuccessFields(map[string]interface{}{"question_id": q.ID})
}

type editQuestionParams struct {
	QuestionID  string `form:"Question_ID" binding:"required"`
	Title       string `form:"Title" binding:"required"`
	Text        string `form:"Text" binding:"required"`
	Options     string `form:"Options" binding:"required"`
	AnswerIndex int    `form:"Answer_Index"`
}

// Edit appends a new version of a question the caller authored. Attempts
// pinned to earlier versions are unaffected.
func (h *QuestionActions) Edit(c *gin.Context, cred *auth.Credential) string {
	var params editQuestionParams
	if fields := validator.BindQuery(c, &params); fields != nil {
		return response.Errorf(response.CodeValidation, "%s", validator.Detail(fields))
	}
	if !json.Valid([]byte(params.Options)) {
		return response.Errorf(response.CodeValidation, "Options must be valid JSON")
	}

	v, err := h.questions.Edit(c.Request.Context(), cred, params.QuestionID, params.Title, params.Text, json.RawMessage(params.Options), params.AnswerIndex)
	if err != nil {
		h.log.Error().Err(err).Str("question_id", params.QuestionID).Msg("question edit failed")
		return questionErr(err)
	}
	return response.SuccessFields(map[string]interface{}{
		"question_id": params.QuestionID,
		"version":     v.Version,
	})
}

// Delete soft-deletes a question the caller authored, unless any test
// still links it.
func (h *QuestionActions) Delete(c *gin.Context, cred *auth.Credential) string {
	if err := h.questions.Delete(c.Request.Context(), cred, c.Query("Question_ID")); err != nil {
		return questionErr(err)
	}
	return response.SuccessFields(nil)
}
