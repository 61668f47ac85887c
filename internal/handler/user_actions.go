package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/response"
	"github.com/studkit/examcore/internal/service"
	"github.com/studkit/examcore/internal/userclient"
)

const userServiceName = "user service"

// UserActions handles the identity-facing actions: names, roles and the
// roster proxy to the remote user service, plus the locally stored
// blocked flag.
type UserActions struct {
	users    *userclient.Client
	accounts *service.UserService
	courses  *service.CourseService
	tests    *service.TestService
	attempts *service.AttemptService
	log      zerolog.Logger
}

// NewUserActions creates a new UserActions group.
func NewUserActions(users *userclient.Client, accounts *service.UserService, courses *service.CourseService, tests *service.TestService, attempts *service.AttemptService, log zerolog.Logger) *UserActions {
	return &UserActions{
		users:    users,
		accounts: accounts,
		courses:  courses,
		tests:    tests,
		attempts: attempts,
		log:      log.With().Str("component", "user_actions").Logger(),
	}
}

// remote passes a user-service response body through, translating
// connectivity failures into the reported unreachable body.
func (h *UserActions) remote(body string, err error) string {
	if err != nil {
		var unreachable *userclient.ErrUnreachable
		if errors.As(err, &unreachable) {
			return response.Unreachable(userServiceName)
		}
		return response.JSONError(err.Error())
	}
	return body
}

// ViewOwnName returns the caller's display name from the user service.
func (h *UserActions) ViewOwnName(c *gin.Context, cred *auth.Credential) string {
	return h.remote(h.users.GetName(c.Request.Context(), c.Query("JWT"), cred.SubjectID))
}

// ViewOtherName returns another user's display name.
func (h *UserActions) ViewOtherName(c *gin.Context, cred *auth.Credential) string {
	targetID := c.Query("Target_ID")
	if targetID == "" {
		return response.Errorf(response.CodeValidation, "Target user ID required")
	}
	return h.remote(h.users.GetName(c.Request.Context(), c.Query("JWT"), targetID))
}

// EditOwnName updates the caller's display name. At least one of the two
// name parameters must be present.
func (h *UserActions) EditOwnName(c *gin.Context, cred *auth.Credential) string {
	firstName := c.Query("New_name")
	lastName := c.Query("New_lastname")
	if firstName == "" && lastName == "" {
		return response.Errorf(response.CodeValidation, "At least one name parameter required")
	}
	return h.remote(h.users.UpdateName(c.Request.Context(), c.Query("JWT"), firstName, lastName))
}

// EditOtherName updates another user's display name. Admin only; the
// dispatcher enforces the role.
func (h *UserActions) EditOtherName(c *gin.Context, cred *auth.Credential) string {
	targetID := c.Query("Target_ID")
	if targetID == "" {
		return response.Errorf(response.CodeValidation, "Target user ID required")
	}
	return h.remote(h.users.UpdateNameOther(c.Request.Context(), c.Query("JWT"), targetID, c.Query("New_name"), c.Query("New_lastname")))
}

// ViewAllUsers returns the full roster from the user service.
func (h *UserActions) ViewAllUsers(c *gin.Context, cred *auth.Credential) string {
	return h.remote(h.users.ListUsers(c.Request.Context(), c.Query("JWT")))
}

// ViewOtherRoles returns another user's role.
func (h *UserActions) ViewOtherRoles(c *gin.Context, cred *auth.Credential) string {
	targetID := c.Query("Target_ID")
	if targetID == "" {
		return response.Errorf(response.CodeValidation, "Target user ID required")
	}
	return h.remote(h.users.GetRole(c.Request.Context(), c.Query("JWT"), targetID))
}

// EditOtherRoles changes another user's role via the user service, which
// applies its own authorization to the forwarded token.
func (h *UserActions) EditOtherRoles(c *gin.Context, cred *auth.Credential) string {
	return h.remote(h.users.SetRole(c.Request.Context(), c.Query("JWT"), c.Query("Target_ID"), c.Query("Target_ROLE")))
}

// ViewBlocked reports the stored blocked flag of the target user as a
// bare "true"/"false" body.
func (h *UserActions) ViewBlocked(c *gin.Context, cred *auth.Credential) string {
	targetID := c.Query("Target_ID")
	if targetID == "" {
		return response.Errorf(response.CodeValidation, "Target user ID required")
	}
	blocked, err := h.accounts.IsBlocked(c.Request.Context(), targetID)
	if err != nil {
		h.log.Error().Err(err).Str("target_id", targetID).Msg("blocked read failed")
		return response.JSONError("Blocked lookup failed")
	}
	return strconv.FormatBool(blocked)
}

// EditBlocked sets the stored blocked flag of the target user. Admin
// only; the dispatcher enforces the role.
func (h *UserActions) EditBlocked(c *gin.Context, cred *auth.Credential) string {
	targetID := c.Query("Target_ID")
	if targetID == "" {
		return response.Errorf(response.CodeValidation, "Target user ID required")
	}
	blocked, err := strconv.ParseBool(c.Query("Blocked"))
	if err != nil {
		return response.Errorf(response.CodeValidation, "Blocked parameter must be true or false")
	}
	if err := h.accounts.SetBlocked(c.Request.Context(), targetID, blocked); err != nil {
		h.log.Error().Err(err).Str("target_id", targetID).Msg("blocked write failed")
		return response.JSONError("Blocked update failed")
	}
	return response.SuccessFields(map[string]interface{}{"is_blocked": blocked})
}

type userDataTest struct {
	TestID    string `json:"test_id"`
	TestTitle string `json:"test_title"`
}

type userDataGrade struct {
	TestTitle  string `json:"test_title"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	Percentage int    `json:"percentage"`
}

type userDataCourse struct {
	CourseID   string          `json:"course_id"`
	CourseName string          `json:"course_name"`
	Tests      []userDataTest  `json:"tests"`
	Grades     []userDataGrade `json:"grades"`
}

type userData struct {
	UserID  string           `json:"user_id"`
	Courses []userDataCourse `json:"courses"`
}

// ViewOwnData returns the caller's course tree: every course they teach
// or attend, its tests, and their completed grades in it.
func (h *UserActions) ViewOwnData(c *gin.Context, cred *auth.Credential) string {
	return h.dataTree(c, cred.SubjectID)
}

// ViewOtherData returns the same tree for another user.
func (h *UserActions) ViewOtherData(c *gin.Context, cred *auth.Credential) string {
	return h.dataTree(c, c.Query("Target_ID"))
}

func (h *UserActions) dataTree(c *gin.Context, userID string) string {
	ctx := c.Request.Context()

	courses, err := h.courses.ListForUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("course listing failed")
		return response.JSONError("Data lookup failed")
	}

	data := userData{UserID: userID, Courses: []userDataCourse{}}
	for _, course := range courses {
		entry := userDataCourse{
			CourseID:   course.ID,
			CourseName: course.Name,
			Tests:      []userDataTest{},
			Grades:     []userDataGrade{},
		}

		tests, err := h.tests.ListByCourse(ctx, course.ID)
		if err != nil {
			h.log.Warn().Err(err).Str("course_id", course.ID).Msg("test listing failed")
		}
		for _, t := range tests {
			entry.Tests = append(entry.Tests, userDataTest{TestID: t.ID, TestTitle: t.Title})
		}

		grades, err := h.attempts.ListGrades(ctx, userID, course.ID)
		if err != nil {
			h.log.Warn().Err(err).Str("course_id", course.ID).Msg("grade listing failed")
		}
		for _, g := range grades {
			entry.Grades = append(entry.Grades, userDataGrade{
				TestTitle:  g.TestTitle,
				Score:      g.Score,
				MaxScore:   g.MaxScore,
				Percentage: g.Percentage,
			})
		}

		data.Courses = append(data.Courses, entry)
	}

	return response.JSON(data)
}
