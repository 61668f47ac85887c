package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/studkit/examcore/internal/config"
	"github.com/studkit/examcore/internal/database"
	"github.com/studkit/examcore/internal/logger"
	"github.com/studkit/examcore/internal/model"
	"github.com/studkit/examcore/internal/repository"
)

// Seeds a small demo dataset: one teacher with a course, a handful of
// enrolled students, a question bank, and one active test wired to it.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool, log)
	courseRepo := repository.NewCourseRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	teacherID := "seed-teacher-1"
	studentIDs := []string{
		"seed-student-1", "seed-student-2", "seed-student-3",
		"seed-student-4", "seed-student-5",
	}

	fmt.Println("=== Seeding Demo Data ===")

	for _, id := range append([]string{teacherID}, studentIDs...) {
		if err := userRepo.SetBlocked(ctx, id, false); err != nil {
			log.Fatal().Err(err).Str("user_id", id).Msg("Failed to seed user row")
		}
	}
	fmt.Printf("Seeded %d user rows\n", len(studentIDs)+1)

	course := &model.Course{
		ID:          "seed-course-go",
		Name:        "Introduction to Databases",
		Description: "Relational modelling, SQL, and transactions",
		TeacherID:   teacherID,
	}
	if err := courseRepo.Create(ctx, course); err != nil {
		log.Fatal().Err(err).Msg("Failed to create course")
	}
	fmt.Printf("Created course %s\n", course.ID)

	enrolled := 0
	for _, id := range studentIDs {
		if err := courseRepo.Enroll(ctx, id, course.ID); err != nil {
			fmt.Printf("Error enrolling %s: %v\n", id, err)
			continue
		}
		enrolled++
	}
	fmt.Printf("Enrolled %d/%d students\n", enrolled, len(studentIDs))

	test := &model.Test{
		ID:       "seed-test-sql-basics",
		CourseID: course.ID,
		Title:    "SQL Basics Quiz",
	}
	if err := testRepo.Create(ctx, test); err != nil {
		log.Fatal().Err(err).Msg("Failed to create test")
	}

	type seedQuestion struct {
		title   string
		text    string
		options []string
		correct int
	}
	bank := []seedQuestion{
		{
			title:   "Primary keys",
			text:    "Which property must a primary key column satisfy?",
			options: []string{"Uniqueness", "Being numeric", "Being indexed last", "Allowing NULLs"},
			correct: 0,
		},
		{
			title:   "Joins",
			text:    "Which join keeps unmatched rows from the left table?",
			options: []string{"INNER JOIN", "LEFT JOIN", "CROSS JOIN", "SELF JOIN"},
			correct: 1,
		},
		{
			title:   "Transactions",
			text:    "Which statement makes a transaction's changes permanent?",
			options: []string{"ROLLBACK", "SAVEPOINT", "COMMIT", "BEGIN"},
			correct: 2,
		},
	}

	for i, sq := range bank {
		opts, err := json.Marshal(sq.options)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode options")
		}
		q := &model.Question{
			ID:       fmt.Sprintf("seed-question-%d", i+1),
			AuthorID: teacherID,
		}
		v := &model.QuestionVersion{
			Title:              sq.title,
			QuestionText:       sq.text,
			Options:            opts,
			CorrectAnswerIndex: sq.correct,
		}
		if err := questionRepo.Create(ctx, q, v); err != nil {
			log.Fatal().Err(err).Str("question_id", q.ID).Msg("Failed to create question")
		}
		if err := testRepo.AddQuestion(ctx, test.ID, q.ID); err != nil {
			log.Fatal().Err(err).Str("question_id", q.ID).Msg("Failed to attach question")
		}
	}
	fmt.Printf("Created %d questions on test %s\n", len(bank), test.ID)

	if _, err := testRepo.SetActive(ctx, test.ID, true); err != nil {
		log.Fatal().Err(err).Msg("Failed to activate test")
	}

	fmt.Println("\nSeed completed!")
}
