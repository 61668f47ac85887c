package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/grading"
	"github.com/studkit/examcore/internal/model"
)

// AttemptSummary is one row of a teacher's per-test attempt listing.
type AttemptSummary struct {
	StudentID  string              `json:"student_id"`
	Score      *int                `json:"score"`
	Percentage *int                `json:"percentage"`
	Status     model.AttemptStatus `json:"status"`
}

// GradeRow is one completed-attempt grade inside a user's course overview.
type GradeRow struct {
	TestTitle  string `json:"test_title"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	Percentage int    `json:"percentage"`
}

// AttemptRepository handles attempt and attempt-answer data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool, log zerolog.Logger) *AttemptRepository {
	return &AttemptRepository{
		pool: pool,
		log:  log.With().Str("component", "attempt_repository").Logger(),
	}
}

// GetByStudentAndTest retrieves the attempt for a (student, test) pair.
func (r *AttemptRepository) GetByStudentAndTest(ctx context.Context, studentID, testID string) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, test_id, status, score, max_score, percentage, completed_at
		 FROM attempts
		 WHERE student_id = $1 AND test_id = $2`, studentID, testID,
	).Scan(&a.ID, &a.StudentID, &a.TestID, &a.Status, &a.Score, &a.MaxScore, &a.Percentage, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new in-progress attempt. The attempts table carries a
// uniqueness constraint on (student_id, test_id); when a concurrent caller
// already inserted the row, ON CONFLICT DO NOTHING makes the RETURNING
// clause yield no row and Create surfaces pgx.ErrNoRows. Callers fall back
// to re-reading the winner's row, so exactly one attempt ever exists per
// pair regardless of interleaving.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (student_id, test_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (student_id, test_id) DO NOTHING
		 RETURNING id`,
		a.StudentID, a.TestID, model.AttemptStatusInProgress,
	).Scan(&a.ID)
}

// SnapshotQuestions pre-populates one answer row per question currently
// linked to the test, each pinned to the question's latest version, with
// the unanswered sentinel. Individual insert failures are logged and
// counted, not retried and not fatal: the attempt already exists and the
// caller reports the shortfall as a partial success.
func (r *AttemptRepository) SnapshotQuestions(ctx context.Context, attemptID int64, testID string) (expected, inserted int, err error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tq.question_id, qv.version FROM test_questions tq
		 JOIN question_versions qv ON tq.question_id = qv.question_id
		 WHERE tq.test_id = $1
		   AND qv.version = (SELECT MAX(version) FROM question_versions WHERE question_id = tq.question_id)
		 ORDER BY tq.question_order`, testID)
	if err != nil {
		return 0, 0, err
	}

	type pin struct {
		questionID string
		version    int
	}
	var pins []pin
	for rows.Next() {
		var p pin
		if err := rows.Scan(&p.questionID, &p.version); err != nil {
			rows.Close()
			return 0, 0, err
		}
		pins = append(pins, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	for _, p := range pins {
		_, insErr := r.pool.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, question_version, selected_answer_index)
			 VALUES ($1, $2, $3, $4)`,
			attemptID, p.questionID, p.version, model.UnansweredIndex)
		if insErr != nil {
			r.log.Warn().Err(insErr).
				Int64("attempt_id", attemptID).
				Str("question_id", p.questionID).
				Msg("answer row insert failed")
			continue
		}
		inserted++
	}

	return len(pins), inserted, nil
}

// UpdateAnswer records a selected option on the answer row matched by
// (attempt, question). Returns false with a nil error when no row matched,
// a soft outcome callers report as a warning rather than a failure.
func (r *AttemptRepository) UpdateAnswer(ctx context.Context, attemptID int64, questionID string, selectedIndex int) (bool, error) {
	var updated int64
	err := r.pool.QueryRow(ctx,
		`UPDATE attempt_answers
		 SET selected_answer_index = $1, answered_at = NOW()
		 WHERE attempt_id = $2 AND question_id = $3
		 RETURNING id`,
		selectedIndex, attemptID, questionID,
	).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListAnswers retrieves the answer rows of an attempt in insertion order.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, question_version, selected_answer_index, answered_at
		 FROM attempt_answers
		 WHERE attempt_id = $1
		 ORDER BY id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.QuestionVersion, &a.SelectedAnswerIndex, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// AnswerKey retrieves the (selected, correct) pairs of an attempt, joined
// to the question version pinned at creation time — not the latest one, so
// later edits to a question never change an issued attempt's grading.
func (r *AttemptRepository) AnswerKey(ctx context.Context, attemptID int64) ([]grading.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT aa.selected_answer_index, qv.correct_answer_index
		 FROM attempt_answers aa
		 JOIN question_versions qv
		   ON aa.question_id = qv.question_id AND aa.question_version = qv.version
		 WHERE aa.attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []grading.Answer
	for rows.Next() {
		var a grading.Answer
		if err := rows.Scan(&a.SelectedIndex, &a.CorrectIndex); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// Complete writes the terminal state and grade of an attempt. Invoked
// unconditionally: completing an already-completed attempt overwrites its
// stored scores with the freshly computed ones.
func (r *AttemptRepository) Complete(ctx context.Context, attemptID int64, res grading.Result) error {
	var completed int64
	return r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $1, completed_at = $2, score = $3, max_score = $4, percentage = $5
		 WHERE id = $6
		 RETURNING id`,
		model.AttemptStatusCompleted, time.Now(), res.Correct, res.Total, res.Percentage, attemptID,
	).Scan(&completed)
}

// GetByID retrieves an attempt by primary key.
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, test_id, status, score, max_score, percentage, completed_at
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.StudentID, &a.TestID, &a.Status, &a.Score, &a.MaxScore, &a.Percentage, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByTest retrieves attempt summaries for a test, most recently
// completed first.
func (r *AttemptRepository) ListByTest(ctx context.Context, testID string) ([]AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, score, percentage, status FROM attempts
		 WHERE test_id = $1
		 ORDER BY completed_at DESC NULLS LAST`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []AttemptSummary
	for rows.Next() {
		var s AttemptSummary
		if err := rows.Scan(&s.StudentID, &s.Score, &s.Percentage, &s.Status); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// HasAttempts reports whether any attempt exists for a test.
func (r *AttemptRepository) HasAttempts(ctx context.Context, testID string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE test_id = $1`, testID,
	).Scan(&count)
	return count > 0, err
}

// BulkCompleteForTest moves every in-progress attempt of a test to
// completed in a single statement. Used when a test is deactivated; the
// transition is atomic across rows, never per-row.
func (r *AttemptRepository) BulkCompleteForTest(ctx context.Context, testID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = $1, completed_at = NOW()
		 WHERE test_id = $2 AND status = $3`,
		model.AttemptStatusCompleted, testID, model.AttemptStatusInProgress)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListGrades retrieves a student's completed grades within one course,
// most recent first. Null scores are coalesced to zero.
func (r *AttemptRepository) ListGrades(ctx context.Context, studentID, courseID string) ([]GradeRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.title, COALESCE(a.score, 0), COALESCE(a.max_score, 0), COALESCE(a.percentage, 0)
		 FROM attempts a
		 JOIN tests t ON a.test_id = t.id
		 WHERE a.student_id = $1 AND t.course_id = $2 AND a.status = $3
		 ORDER BY a.completed_at DESC`,
		studentID, courseID, model.AttemptStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []GradeRow
	for rows.Next() {
		var g GradeRow
		if err := rows.Scan(&g.TestTitle, &g.Score, &g.MaxScore, &g.Percentage); err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}
