package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumenlabs/lumen-backend/internal/db"
	"github.com/lumenlabs/lumen-backend/internal/handlers"
	"github.com/lumenlabs/lumen-backend/internal/llm"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
	"github.com/lumenlabs/lumen-backend/internal/repos"
	"github.com/lumenlabs/lumen-backend/internal/retry"
	"github.com/lumenlabs/lumen-backend/internal/server"
	"github.com/lumenlabs/lumen-backend/internal/services"
	"github.com/lumenlabs/lumen-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	port := utils.GetEnv("PORT", "8080", log)
	pollInterval := utils.GetEnvAsDuration("RETRY_POLL_INTERVAL", retry.DefaultPollInterval, log)
	pollTimeout := utils.GetEnvAsDuration("RETRY_POLL_TIMEOUT", retry.DefaultPollTimeout, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Metrics
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	// Repos
	log.Info("Setting up repos...")
	courseRepo := repos.NewCourseRepo(thePG, log)
	lessonRepo := repos.NewLessonRepo(thePG, log)
	quizRepo := repos.NewQuizRepo(thePG, log)

	// LLM provider
	var provider llm.Provider
	if utils.GetEnv("LLM_PROVIDER", "openai", log) == "mock" {
		provider = &llm.MockProvider{}
	} else {
		provider, err = llm.NewOpenAIProvider(log)
		if err != nil {
			log.Fatal("OpenAI init failed", "error", err)
		}
	}
	provider = llm.WithRetry(provider, llm.DefaultRetryConfig(), log, metrics)

	// Services
	log.Info("Setting up services...")
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generationSvc := services.NewGenerationService(rootCtx, thePG, log, courseRepo, lessonRepo, quizRepo, provider, metrics)
	courseSvc := services.NewCourseService(thePG, log, courseRepo, lessonRepo, provider, generationSvc, metrics)
	lessonSvc := services.NewLessonService(thePG, log, courseRepo, lessonRepo, quizRepo, provider, metrics)
	quizSvc := services.NewQuizService(thePG, log, quizRepo, lessonRepo, courseRepo, provider, metrics)
	retrySvc := services.NewRetrySessionManager(rootCtx, log, courseSvc, retry.Config{
		PollInterval: pollInterval,
		PollTimeout:  pollTimeout,
	}, metrics)

	// Handlers
	router := server.NewRouter(server.RouterConfig{
		HealthHandler: handlers.NewHealthcheckHandler(thePG),
		CourseHandler: handlers.NewCourseHandler(log, courseSvc, retrySvc),
		LessonHandler: handlers.NewLessonHandler(log, lessonSvc),
		QuizHandler:   handlers.NewQuizHandler(log, quizSvc),
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	generationSvc.Shutdown(shutdownCtx)
}
