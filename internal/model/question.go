package model

import "encoding/json"

// Question is a versioned question identity. The content lives in
// QuestionVersion rows; editing a question appends a new version rather
// than mutating the old one, so attempts pinned to an older version keep
// grading against the answer key they were issued with.
type Question struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	IsDeleted bool   `json:"-"`
}

// QuestionVersion is one immutable revision of a question's content and
// answer key.
type QuestionVersion struct {
	QuestionID         string          `json:"question_id"`
	Version            int             `json:"version"`
	Title              string          `json:"title"`
	QuestionText       string          `json:"question_text"`
	Options            json.RawMessage `json:"options"`
	CorrectAnswerIndex int             `json:"correct_answer_index"`
}

// QuestionListing is a question joined to its latest version, as shown in
// question lists.
type QuestionListing struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Version  int    `json:"version"`
	AuthorID string `json:"author_id"`
}

// TestQuestion links a question into a test at a position.
type TestQuestion struct {
	TestID        string `json:"test_id"`
	QuestionID    string `json:"question_id"`
	QuestionOrder int    `json:"question_order"`
}
