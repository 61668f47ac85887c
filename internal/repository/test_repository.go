package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/studkit/examcore/internal/model"
)

// TestRepository handles test data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test, excluding soft-deleted rows.
func (r *TestRepository) GetByID(ctx context.Context, id string) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, title, is_active FROM tests
		 WHERE id = $1 AND NOT is_deleted`, id,
	).Scan(&t.ID, &t.CourseID, &t.Title, &t.IsActive)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new test. Tests start inactive.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (id, course_id, title, is_active)
		 VALUES ($1, $2, $3, false)
		 RETURNING id`,
		t.ID, t.CourseID, t.Title,
	).Scan(&t.ID)
}

// ListByCourse retrieves the live tests of a course ordered by title.
func (r *TestRepository) ListByCourse(ctx context.Context, courseID string) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, is_active FROM tests
		 WHERE course_id = $1 AND NOT is_deleted
		 ORDER BY title`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Title, &t.IsActive); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// SetActive toggles a test's active flag and returns the stored value.
func (r *TestRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	var stored bool
	err := r.pool.QueryRow(ctx,
		`UPDATE tests SET is_active = $2 WHERE id = $1 RETURNING is_active`,
		id, active,
	).Scan(&stored)
	return stored, err
}

// SoftDelete flags a test deleted without removing the row.
func (r *TestRepository) SoftDelete(ctx context.Context, id string) error {
	var deleted string
	return r.pool.QueryRow(ctx,
		`UPDATE tests SET is_deleted = true WHERE id = $1 RETURNING id`, id,
	).Scan(&deleted)
}

// TeacherOf resolves the teacher owning the course a test belongs to,
// excluding soft-deleted tests and courses.
func (r *TestRepository) TeacherOf(ctx context.Context, testID string) (string, error) {
	var teacherID string
	err := r.pool.QueryRow(ctx,
		`SELECT c.teacher_id FROM tests t
		 JOIN courses c ON t.course_id = c.id
		 WHERE t.id = $1 AND NOT t.is_deleted AND NOT c.is_deleted`, testID,
	).Scan(&teacherID)
	return teacherID, err
}

// AddQuestion links a question to a test at the next order position.
func (r *TestRepository) AddQuestion(ctx context.Context, testID, questionID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO test_questions (test_id, question_id, question_order)
		 VALUES ($1, $2,
		   (SELECT COALESCE(MAX(question_order), 0) + 1 FROM test_questions WHERE test_id = $1))`,
		testID, questionID)
	return err
}

// RemoveQuestion unlinks a question from a test.
func (r *TestRepository) RemoveQuestion(ctx context.Context, testID, questionID string) error {
	var removed string
	return r.pool.QueryRow(ctx,
		`DELETE FROM test_questions WHERE test_id = $1 AND question_id = $2
		 RETURNING question_id`,
		testID, questionID,
	).Scan(&removed)
}
