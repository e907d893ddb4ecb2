package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/router"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"github.com/stemsi/exstem-quiz/internal/worker"
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
		Msg("Starting ExStem Quiz")

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
	classRepo := repository.NewClassRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewAnswerSessionRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Redis-backed Infrastructure ───────────────────────────────────
	keyCache := service.NewRedisAnswerKeyCache(rdb)
	events := service.NewRedisEventPublisher(rdb)
	finalizeQueue := worker.NewFinalizeQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo)
	userService := service.NewUserService(userRepo, classRepo, authService, log)
	classService := service.NewClassService(classRepo, userRepo)
	examService := service.NewExamService(examRepo, classRepo, keyCache, log)
	questionService := service.NewQuestionService(examRepo, questionRepo, keyCache, cfg.ShuffleSalt, log)
	answerService := service.NewAnswerService(examRepo, classRepo, sessionRepo, questionService, events, finalizeQueue, log)
	monitorService := service.NewMonitorService(examRepo, monitorRepo, rdb)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, cfg, log),
		Exam:     handler.NewExamHandler(examService, answerService, log),
		Question: handler.NewQuestionHandler(questionService, log),
		Answer:   handler.NewAnswerHandler(answerService, log),
		Class:    handler.NewClassHandler(classService, userService, log),
		Monitor:  handler.NewMonitorHandler(monitorService, log),
		WS:       handler.NewWSHandler(examService, answerService, log, cfg.AllowedOrigins),
		System:   handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	finalizeWorker := worker.NewFinalizeWorker(finalizeQueue, sessionRepo, questionService, events, cfg.FinalizeBatchSize, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		finalizeWorker.Start(workerCtx)
	}()

	scheduler := worker.NewExamScheduler(examRepo, sessionRepo, finalizeQueue, cfg.SchedulerSpec, log)
	if err := scheduler.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start exam scheduler")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	// Login attempts per IP per minute.
	loginLimiter := middleware.NewRateLimiter(ctx, cfg.LoginRateLimit, time.Minute)
	r := router.SetupRouter(authService, handlers, cfg, loginLimiter)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the scheduler and let the finalize worker flush its batch.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Finalize worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
