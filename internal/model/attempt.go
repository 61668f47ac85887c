package model

import "time"

// AttemptStatus enumerates attempt states. The state machine is
// Uncreated -> InProgress -> Completed; Completed is terminal.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
)

// Attempt is one student's single pass at one test. At most one attempt
// ever exists per (student_id, test_id); creation is idempotent.
type Attempt struct {
	ID          int64         `json:"id"`
	StudentID   string        `json:"student_id"`
	TestID      string        `json:"test_id"`
	Status      AttemptStatus `json:"status"`
	Score       *int          `json:"score,omitempty"`
	MaxScore    *int          `json:"max_score,omitempty"`
	Percentage  *int          `json:"percentage,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// UnansweredIndex is the sentinel stored for a question the student has
// not answered yet.
const UnansweredIndex = -1

// AttemptAnswer is one answer slot of an attempt. A full set of rows is
// pre-populated at attempt creation, one per question in the test, each
// pinned to the question version current at that moment. The rows share
// the attempt's lifetime.
type AttemptAnswer struct {
	ID                  int64      `json:"id"`
	AttemptID           int64      `json:"attempt_id"`
	QuestionID          string     `json:"question_id"`
	QuestionVersion     int        `json:"question_version"`
	SelectedAnswerIndex int        `json:"selected_answer_index"`
	AnsweredAt          *time.Time `json:"answered_at,omitempty"`
}
