package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/config"
	"github.com/studkit/examcore/internal/database"
	"github.com/studkit/examcore/internal/dispatch"
	"github.com/studkit/examcore/internal/gate"
	"github.com/studkit/examcore/internal/handler"
	"github.com/studkit/examcore/internal/logger"
	"github.com/studkit/examcore/internal/repository"
	"github.com/studkit/examcore/internal/router"
	"github.com/studkit/examcore/internal/service"
	"github.com/studkit/examcore/internal/userclient"
	"github.com/studkit/examcore/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamCore")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool, log)
	courseRepo := repository.NewCourseRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool, log)

	// ─── Authorization Gate ────────────────────────────────────────────
	tokenValidator := auth.NewValidator(cfg.JWTSecret)
	blockedStore := gate.NewCachedBlockedStore(userRepo, rdb, cfg.BlockedCacheTTL, log)
	authGate := gate.New(tokenValidator, blockedStore, log)

	// ─── Remote User Service Client ────────────────────────────────────
	users := userclient.New(cfg.UserServiceURL, cfg.UserServiceTimeout, log)

	// ─── Initialize Services ───────────────────────────────────────────
	userService := service.NewUserService(userRepo, blockedStore, log)
	courseService := service.NewCourseService(courseRepo)
	testService := service.NewTestService(testRepo, courseRepo, attemptRepo, log)
	questionService := service.NewQuestionService(questionRepo)
	attemptService := service.NewAttemptService(attemptRepo, testRepo, log)

	// ─── Initialize Action Handlers ────────────────────────────────────
	userActions := handler.NewUserActions(users, userService, courseService, testService, attemptService, log)
	courseActions := handler.NewCourseActions(courseService, log)
	testActions := handler.NewTestActions(testService, courseService, log)
	questionActions := handler.NewQuestionActions(questionService, log)
	attemptActions := handler.NewAttemptActions(attemptService, testService, log)

	// ─── Build the Dispatcher ──────────────────────────────────────────
	dispatcher := dispatch.New(authGate, log)
	handler.Register(dispatcher, userActions, courseActions, testActions, questionActions, attemptActions)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(dispatcher, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
