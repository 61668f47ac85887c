package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/response"
	"github.com/studkit/examcore/internal/service"
	"github.com/studkit/examcore/internal/validator"
)

// CourseActions handles course CRUD and enrollment actions.
type CourseActions struct {
	courses *service.CourseService
	log     zerolog.Logger
}

// NewCourseActions creates a new CourseActions group.
func NewCourseActions(courses *service.CourseService, log zerolog.Logger) *CourseActions {
	return &CourseActions{
		courses: courses,
		log:     log.With().Str("component", "course_actions").Logger(),
	}
}

// courseErr maps service failures to the domain error bodies.
func courseErr(err error) string {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		return response.JSONError("Course not found")
	case errors.Is(err, service.ErrNotOwner):
		return response.JSONError("No permission")
	default:
		return response.JSONError("Storage operation failed")
	}
}

type createCourseParams struct {
	Name        string `form:"Course_NAME" binding:"required"`
	Description string `form:"Description"`
}

// Create makes a new course owned by the caller.
func (h *CourseActions) Create(c *gin.Context, cred *auth.Credential) string {
	var params createCourseParams
	if fields := validator.BindQuery(c, &params); fields != nil {
		return response.Errorf(response.CodeValidation, "%s", validator.Detail(fields))
	}

	course, err := h.courses.Create(c.Request.Context(), cred, params.Name, params.Description)
	if err != nil {
		h.log.Error().Err(err).Msg("course create failed")
		return courseErr(err)
	}
	return response.SuccessFields(map[string]interface{}{
		"course_id":   course.ID,
		"course_name": course.Name,
	})
}

// ViewAll lists every live course.
func (h *CourseActions) ViewAll(c *gin.Context, cred *auth.Credential) string {
	courses, err := h.courses.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("course listing failed")
		return response.JSONError("Storage operation failed")
	}

	type entry struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := struct {
		Courses []entry `json:"courses"`
	}{Courses: []entry{}}
	for _, course := range courses {
		out.Courses = append(out.Courses, entry{ID: course.ID, Name: course.Name, Description: course.Description})
	}
	return response.JSON(out)
}

// ViewInfo returns one course's details.
func (h *CourseActions) ViewInfo(c *gin.Context, cred *auth.Credential) string {
	course, err := h.courses.Get(c.Request.Context(), c.Query("Course_ID"))
	if err != nil {
		return courseErr(err)
	}
	return response.JSON(struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		TeacherID   string `json:"teacher_id"`
	}{course.Name, course.Description, course.TeacherID})
}

// EditInfo updates a course's name and description.
func (h *CourseActions) EditInfo(c *gin.Context, cred *auth.Credential) string {
	course, err := h.courses.Update(c.Request.Context(), cred, c.Query("Course_ID"), c.Query("Course_NAME"), c.Query("Description"))
	if err != nil {
		return courseErr(err)
	}
	return response.SuccessFields(map[string]interface{}{
		"name":        course.Name,
		"description": course.Description,
	})
}

// Delete soft-deletes a course.
func (h *CourseActions) Delete(c *gin.Context, cred *auth.Credential) string {
	if err := h.courses.Delete(c.Request.Context(), cred, c.Query("Course_ID")); err != nil {
		return courseErr(err)
	}
	return response.SuccessFields(nil)
}

// Enroll adds a student to a course. Students may enroll themselves;
// anyone else must be the owning teacher.
func (h *CourseActions) Enroll(c *gin.Context, cred *auth.Credential) string {
	courseID := c.Query("Course_ID")
	studentID := c.Query("Target_ID")
	if studentID == "" {
		studentID = cred.SubjectID
	}

	ctx := c.Request.Context()
	var err error
	if studentID == cred.SubjectID {
		// Self-enrollment skips the ownership check.
		if _, err = h.courses.Get(ctx, courseID); err == nil {
			err = h.courses.SelfEnroll(ctx, studentID, courseID)
		}
	} else {
		err = h.courses.Enroll(ctx, cred, studentID, courseID)
	}
	if err != nil {
		return courseErr(err)
	}
	return response.SuccessFields(nil)
}

// Unenroll removes a student from a course, under the same self-or-owner
// rule as Enroll.
func (h *CourseActions) Unenroll(c *gin.Context, cred *auth.Credential) string {
	courseID := c.Query("Course_ID")
	studentID := c.Query("Target_ID")
	if studentID == "" {
		studentID = cred.SubjectID
	}

	ctx := c.Request.Context()
	var err error
	if studentID == cred.SubjectID {
		if _, err = h.courses.Get(ctx, courseID); err == nil {
			err = h.courses.SelfUnenroll(ctx, studentID, courseID)
		}
	} else {
		err = h.courses.Unenroll(ctx, cred, studentID, courseID)
	}
	if err != nil {
		return courseErr(err)
	}
	return response.SuccessFields(nil)
}

// ViewStudents lists the student ids enrolled in a course the caller
// owns.
func (h *CourseActions) ViewStudents(c *gin.Context, cred *auth.Credential) string {
	students, err := h.courses.ListStudents(c.Request.Context(), cred, c.Query("Course_ID"))
	if err != nil {
		return courseErr(err)
	}
	if students == nil {
		students = []string{}
	}
	return response.JSON(struct {
		Students []string `json:"students"`
	}{students})
}
