package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/response"
	"github.com/studkit/examcore/internal/service"
	"github.com/studkit/examcore/internal/validator"
)

// TestActions handles test administration actions.
type TestActions struct {
	tests   *service.TestService
	courses *service.CourseService
	log     zerolog.Logger
}

// NewTestActions creates a new TestActions group.
func NewTestActions(tests *service.TestService, courses *service.CourseService, log zerolog.Logger) *TestActions {
	return &TestActions{
		tests:   tests,
		courses: courses,
		log:     log.With().Str("component", "test_actions").Logger(),
	}
}

func testErr(err error) string {
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		return response.JSONError("Test not found")
	case errors.Is(err, service.ErrCourseNotFound):
		return response.JSONError("Course not found")
	case errors.Is(err, service.ErrQuestionNotFound):
		return response.JSONError("Question not found")
	case errors.Is(err, service.ErrTestHasAttempts):
		return response.JSONError("Test has attempts")
	case errors.Is(err, service.ErrNotOwner):
		return response.JSONError("No permission")
	default:
		return response.JSONError("Storage operation failed")
	}
}

type createTestParams struct {
	CourseID string `form:"Course_ID" binding:"required"`
	Title    string `form:"Title" binding:"required"`
}

// Create makes a new inactive test inside a course the caller owns.
func (h *TestActions) Create(c *gin.Context, cred *auth.Credential) string {
	var params createTestParams
	if fields := validator.BindQuery(c, &params); fields != nil {
		return response.Errorf(response.CodeValidation, "%s", validator.Detail(fields))
	}

	test, err := h.tests.Create(c.Request.Context(), cred, params.CourseID, params.Title)
	if err != nil {
		return testErr(err)
	}
	return response.SuccessFields(map[string]interface{}{"test_id": test.ID})
}

// Delete soft-deletes a test.
func (h *TestActions) Delete(c *gin.Context, cred *auth.Credential) string {
	if err := h.tests.Delete(c.Request.Context(), cred, c.Query("Test_ID")); err != nil {
		return testErr(err)
	}
	return response.SuccessFields(nil)
}

// ViewByCourse lists the live tests of a course, visible to the owning
// teacher and to enrolled students.
func (h *TestActions) ViewByCourse(c *gin.Context, cred *auth.Credential) string {
	courseID := c.Query("Course_ID")
	ctx := c.Request.Context()

	if body := h.requireCourseAccess(c, cred, courseID); body != "" {
		return body
	}

	tests, err := h.tests.ListByCourse(ctx, courseID)
	if err != nil {
		h.log.Error().Err(err).Str("course_id", courseID).Msg("test listing failed")
		return response.JSONError("Storage operation failed")
	}

	type entry struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	out := struct {
		Tests []entry `json:"tests"`
	}{Tests: []entry{}}
	for _, t := range tests {
		out.Tests = append(out.Tests, entry{ID: t.ID, Title: t.Title})
	}
	return response.JSON(out)
}

// CheckActive reports whether a test is currently active.
func (h *TestActions) CheckActive(c *gin.Context, cred *auth.Credential) string {
	if body := h.requireCourseAccess(c, cred, c.Query("Course_ID")); body != "" {
		return body
	}

	test, err := h.tests.Get(c.Request.Context(), c.Query("Test_ID"))
	if err != nil {
		return testErr(err)
	}
	return response.JSON(struct {
		IsActive bool `json:"is_active"`
	}{test.IsActive})
}

// ToggleActive activates or deactivates a test. Deactivation closes all
// in-progress attempts as a side effect.
func (h *TestActions) ToggleActive(c *gin.Context, cred *auth.Credential) string {
	activate, err := strconv.ParseBool(c.Query("Activate"))
	if err != nil {
		return response.Errorf(response.CodeValidation, "Activate parameter must be true or false")
	}

	stored, err := h.tests.SetActive(c.Request.Context(), cred, c.Query("Test_ID"), activate)
	if err != nil {
		return testErr(err)
	}
	return response.SuccessFields(map[string]interface{}{"is_active": stored})
}

// AddQuestion links a question into a test at the next position.
func (h *TestActions) AddQuestion(c *gin.Context, cred *auth.Credential) string {
	if err := h.tests.AddQuestion(c.Request.Context(), cred, c.Query("Test_ID"), c.Query("Question_ID")); err != nil {
		return testErr(err)
	}
	return response.SuccessFields(nil)
}

// RemoveQuestion unlinks a question from a test.
func (h *TestActions) RemoveQuestion(c *gin.Context, cred *auth.Credential) string {
	if err := h.tests.RemoveQuestion(c.Request.Context(), cred, c.Query("Test_ID"), c.Query("Question_ID")); err != nil {
		return testErr(err)
	}
	return response.SuccessFields(nil)
}

// requireCourseAccess admits the owning teacher and enrolled students.
// Returns an empty string when access is granted, an error body when not.
func (h *TestActions) requireCourseAccess(c *gin.Context, cred *auth.Credential, courseID string) string {
	ctx := c.Request.Context()

	course, err := h.courses.Get(ctx, courseID)
	if err != nil {
		return courseErr(err)
	}
	if cred.Role == auth.RoleAdmin || course.TeacherID == cred.SubjectID {
		return ""
	}

	enrolled, err := h.courses.IsEnrolled(ctx, cred.SubjectID, courseID)
	if err != nil {
		h.log.Error().Err(err).Str("course_id", courseID).Msg("enrollment check failed")
		return response.JSONError("Storage operation failed")
	}
	if !enrolled {
		return response.JSONError("No access")
	}
	return ""
}
