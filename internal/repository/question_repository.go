package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/studkit/examcore/internal/model"
)

// QuestionRepository handles question and question-version data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByID retrieves a question identity, excluding soft-deleted rows.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, author_id FROM questions WHERE id = $1 AND NOT is_deleted`, id,
	).Scan(&q.ID, &q.AuthorID)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a question and its first version in one transaction so a
// question can never exist without content.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question, v *model.QuestionVersion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO questions (id, author_id) VALUES ($1, $2) RETURNING id`,
		q.ID, q.AuthorID,
	).Scan(&q.ID); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	v.QuestionID = q.ID
	v.Version = 1
	if err := tx.QueryRow(ctx,
		`INSERT INTO question_versions (question_id, version, title, question_text, options, correct_answer_index)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING version`,
		v.QuestionID, v.Version, v.Title, v.QuestionText, v.Options, v.CorrectAnswerIndex,
	).Scan(&v.Version); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	return tx.Commit(ctx)
}

// AddVersion appends a new immutable revision of a question's content.
// The version number is assigned inside the insert so concurrent edits
// cannot collide on it.
func (r *QuestionRepository) AddVersion(ctx context.Context, v *model.QuestionVersion) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO question_versions (question_id, version, title, question_text, options, correct_answer_index)
		 VALUES ($1,
		   (SELECT COALESCE(MAX(version), 0) + 1 FROM question_versions WHERE question_id = $1),
		   $2, $3, $4, $5)
		 RETURNING version`,
		v.QuestionID, v.Title, v.QuestionText, v.Options, v.CorrectAnswerIndex,
	).Scan(&v.Version)
}

// GetLatestVersion retrieves the newest version of a question.
func (r *QuestionRepository) GetLatestVersion(ctx context.Context, questionID string) (*model.QuestionVersion, error) {
	v := &model.QuestionVersion{QuestionID: questionID}
	err := r.pool.QueryRow(ctx,
		`SELECT version, title, question_text, options, correct_answer_index
		 FROM question_versions
		 WHERE question_id = $1
		 ORDER BY version DESC LIMIT 1`, questionID,
	).Scan(&v.Version, &v.Title, &v.QuestionText, &v.Options, &v.CorrectAnswerIndex)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListLatest retrieves every live question joined to its latest version.
// When authorID is non-empty the listing is restricted to that author.
func (r *QuestionRepository) ListLatest(ctx context.Context, authorID string) ([]model.QuestionListing, error) {
	query := `SELECT q.id, qv.title, qv.version, q.author_id FROM questions q
		 JOIN question_versions qv ON q.id = qv.question_id
		 WHERE qv.version = (SELECT MAX(version) FROM question_versions WHERE question_id = q.id)
		 AND NOT q.is_deleted`
	args := []any{}
	if authorID != "" {
		query += ` AND q.author_id = $1`
		args = append(args, authorID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []model.QuestionListing
	for rows.Next() {
		var l model.QuestionListing
		if err := rows.Scan(&l.ID, &l.Title, &l.Version, &l.AuthorID); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetVersion retrieves one specific version of a question.
func (r *QuestionRepository) GetVersion(ctx context.Context, questionID string, version int) (*model.QuestionVersion, error) {
	v := &model.QuestionVersion{QuestionID: questionID, Version: version}
	err := r.pool.QueryRow(ctx,
		`SELECT title, question_text, options, correct_answer_index
		 FROM question_versions
		 WHERE question_id = $1 AND version = $2`,
		questionID, version,
	).Scan(&v.Title, &v.QuestionText, &v.Options, &v.CorrectAnswerIndex)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UsageCount reports how many tests reference a question.
func (r *QuestionRepository) UsageCount(ctx context.Context, questionID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_questions WHERE question_id = $1`, questionID,
	).Scan(&count)
	return count, err
}

// SoftDelete flags a question deleted without removing the row.
func (r *QuestionRepository) SoftDelete(ctx context.Context, id string) error {
	var deleted string
	return r.pool.QueryRow(ctx,
		`UPDATE questions SET is_deleted = true WHERE id = $1 RETURNING id`, id,
	).Scan(&deleted)
}

// HasAttemptWith reports whether a student holds an attempt containing the
// question. Students may inspect questions they have been issued.
func (r *QuestionRepository) HasAttemptWith(ctx context.Context, studentID, questionID string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempt_answers aa
		 JOIN attempts a ON aa.attempt_id = a.id
		 WHERE a.student_id = $1 AND aa.question_id = $2`,
		studentID, questionID,
	).Scan(&count)
	return count > 0, err
}
