package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/studkit/examcore/internal/model"
)

// CourseRepository handles course and enrollment data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID retrieves a course, excluding soft-deleted rows.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*model.Course, error) {
	c := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, teacher_id FROM courses
		 WHERE id = $1 AND NOT is_deleted`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.TeacherID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (id, name, description, teacher_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		c.ID, c.Name, c.Description, c.TeacherID,
	).Scan(&c.ID)
}

// List retrieves all live courses ordered by name.
func (r *CourseRepository) List(ctx context.Context) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, teacher_id FROM courses
		 WHERE NOT is_deleted ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.TeacherID); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Update overwrites a course's name and description.
func (r *CourseRepository) Update(ctx context.Context, id, name, description string) (*model.Course, error) {
	c := &model.Course{ID: id}
	err := r.pool.QueryRow(ctx,
		`UPDATE courses SET name = $2, description = $3
		 WHERE id = $1
		 RETURNING name, description, teacher_id`,
		id, name, description,
	).Scan(&c.Name, &c.Description, &c.TeacherID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SoftDelete flags a course deleted without removing the row.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string) error {
	var deleted string
	return r.pool.QueryRow(ctx,
		`UPDATE courses SET is_deleted = true WHERE id = $1 RETURNING id`, id,
	).Scan(&deleted)
}

// ListCoursesForUser retrieves the live courses a user teaches or is
// enrolled in.
func (r *CourseRepository) ListCoursesForUser(ctx context.Context, userID string) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name FROM courses WHERE teacher_id = $1 AND NOT is_deleted
		 UNION
		 SELECT c.id, c.name FROM courses c
		 JOIN student_courses sc ON c.id = sc.course_id
		 WHERE sc.student_id = $1 AND NOT c.is_deleted`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Enroll adds a student to a course. Re-enrolling is a no-op.
func (r *CourseRepository) Enroll(ctx context.Context, studentID, courseID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO student_courses (student_id, course_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		studentID, courseID)
	return err
}

// Unenroll removes a student from a course.
func (r *CourseRepository) Unenroll(ctx context.Context, studentID, courseID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM student_courses WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID)
	return err
}

// IsEnrolled reports whether a student is enrolled in a course.
func (r *CourseRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_courses WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	).Scan(&count)
	return count > 0, err
}

// ListStudents retrieves the ids of students enrolled in a course, in
// enrollment order.
func (r *CourseRepository) ListStudents(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM student_courses WHERE course_id = $1 ORDER BY enrolled_at`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		students = append(students, id)
	}
	return students, rows.Err()
}
