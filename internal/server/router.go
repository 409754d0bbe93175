package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenlabs/lumen-backend/internal/handlers"
)

type RouterConfig struct {
	HealthHandler *handlers.HealthcheckHandler
	CourseHandler *handlers.CourseHandler
	LessonHandler *handlers.LessonHandler
	QuizHandler   *handlers.QuizHandler
	CORSOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthHandler.Healthz)
	router.GET("/readyz", cfg.HealthHandler.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		// Courses
		api.POST("/courses", cfg.CourseHandler.CreateCourse)
		api.GET("/courses", cfg.CourseHandler.ListCourses)
		api.GET("/courses/:id", cfg.CourseHandler.GetCourse)
		api.PATCH("/courses/:id", cfg.CourseHandler.UpdateCourse)
		api.DELETE("/courses/:id", cfg.CourseHandler.ArchiveCourse)
		api.POST("/courses/:id/publish", cfg.CourseHandler.PublishCourse)

		// Retry
		api.GET("/courses/:id/retry-eligibility", cfg.CourseHandler.GetRetryEligibility)
		api.POST("/courses/:id/retry-generation", cfg.CourseHandler.RetryGeneration)
		api.GET("/courses/:id/retry-progress", cfg.CourseHandler.GetRetryProgress)

		// Lessons
		api.GET("/courses/:id/lessons", cfg.LessonHandler.ListCourseLessons)
		api.GET("/lessons/:id", cfg.LessonHandler.GetLesson)
		api.PUT("/lessons/:id/user-status", cfg.LessonHandler.UpdateLessonUserStatus)
		api.POST("/lessons/:id/regenerate", cfg.LessonHandler.RegenerateLesson)

		// Quizzes
		api.GET("/quizzes/:id", cfg.QuizHandler.GetQuiz)
		api.PUT("/quizzes/:id", cfg.QuizHandler.UpdateQuiz)
		api.DELETE("/quizzes/:id", cfg.QuizHandler.DeleteQuiz)
		api.POST("/quizzes/:id/regenerate", cfg.QuizHandler.RegenerateQuiz)
		api.GET("/lessons/:id/quiz", cfg.QuizHandler.GetLessonQuiz)
		api.POST("/lessons/:id/quiz", cfg.QuizHandler.CreateLessonQuiz)
		api.GET("/courses/:id/quizzes", cfg.QuizHandler.ListCourseQuizzes)
		api.GET("/courses/:id/final-quiz", cfg.QuizHandler.GetFinalQuiz)
		api.POST("/courses/:id/final-quiz", cfg.QuizHandler.CreateFinalQuiz)
		api.PUT("/quizzes/:id/status", cfg.QuizHandler.MarkQuizAttempted)
		api.POST("/quizzes/:id/attempts", cfg.QuizHandler.SubmitQuizAttempt)
		api.GET("/quizzes/:id/attempt", cfg.QuizHandler.GetQuizAttempt)
	}

	return router
}
