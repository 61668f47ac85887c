package handler

import "github.com/studkit/examcore/internal/dispatch"

// Register binds every action to its required capability on the
// dispatcher. This table is the single authorization map of the system;
// handlers themselves never re-check tokens or capabilities, only
// ownership of the targeted rows.
func Register(d *dispatch.Dispatcher, users *UserActions, courses *CourseActions, tests *TestActions, questions *QuestionActions, attempts *AttemptActions) {
	// Identity and roster.
	d.Register("VIEW_OWN_NAME", "", users.ViewOwnName)
	d.Register("VIEW_OTHER_NAME", "user:data:read:others", users.ViewOtherName)
	d.Register("EDIT_OWN_NAME", "user:fullName:write:self", users.EditOwnName)
	d.RegisterAdmin("EDIT_OTHER_NAME", users.EditOtherName)
	d.Register("VIEW_ALL_USERS", "user:list:read", users.ViewAllUsers)
	d.Register("VIEW_OTHER_ROLES", "user:roles:read:others", users.ViewOtherRoles)
	d.Register("EDIT_OTHER_ROLES", "", users.EditOtherRoles)
	d.Register("VIEW_BLOCKED", "", users.ViewBlocked)
	d.RegisterAdmin("EDIT_BLOCKED", users.EditBlocked)
	d.Register("VIEW_OWN_DATA", "user:data:read:self", users.ViewOwnData)
	d.Register("VIEW_OTHER_DATA", "user:data:read:others", users.ViewOtherData)

	// Courses and enrollment.
	d.Register("CREATE_COURSE", "course:add", courses.Create)
	d.Register("VIEW_ALL_COURSES", "", courses.ViewAll)
	d.Register("VIEW_COURSE_INFO", "", courses.ViewInfo)
	d.Register("EDIT_COURSE_INFO", "course:test:write:own", courses.EditInfo)
	d.Register("DELETE_COURSE", "course:user:del:others", courses.Delete)
	d.Register("VIEW_COURSE_STUDENTS", "course:userList:own", courses.ViewStudents)
	d.Register("ENROLL_STUDENT", "course:user:add:others", courses.Enroll)
	d.Register("UNENROLL_STUDENT", "course:user:del:others", courses.Unenroll)

	// Tests.
	d.Register("VIEW_COURSE_TESTS", "course:test:read:self", tests.ViewByCourse)
	d.Register("CREATE_TEST", "test:quest:add:own", tests.Create)
	d.Register("DELETE_TEST", "test:quest:del:own", tests.Delete)
	d.Register("CHECK_TEST_ACTIVE", "test:quest:add:own", tests.CheckActive)
	d.Register("TOGGLE_TEST_ACTIVE", "test:quest:add:own", tests.ToggleActive)
	d.Register("ADD_QUESTION_TO_TEST", "", tests.AddQuestion)
	d.Register("REMOVE_QUESTION_FROM_TEST", "test:quest:del:own", tests.RemoveQuestion)

	// Question bank.
	d.Register("VIEW_QUESTIONS", "quest:list:read:self", questions.View)
	d.Register("VIEW_QUESTION_DETAIL", "quest:read:self", questions.ViewDetail)
	d.Register("CREATE_QUESTION", "quest:create", questions.Create)
	d.Register("EDIT_QUESTION", "quest:create", questions.Edit)
	d.Register("DELETE_QUESTION", "quest:del:self", questions.Delete)

	// Attempt lifecycle.
	d.Register("VIEW_TEST_ATTEMPTS", "test:answer:read:others", attempts.ViewByTest)
	d.Register("CREATE_ATTEMPT", "attempt:create:self", attempts.Create)
	d.Register("VIEW_ATTEMPT", "attempt:read:self", attempts.View)
	d.Register("UPDATE_ANSWER", "answer:update:self", attempts.UpdateAnswer)
	d.Register("COMPLETE_ATTEMPT", "attempt:complete:self", attempts.Complete)
}
