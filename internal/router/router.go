package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Exam     *handler.ExamHandler
	Question *handler.QuestionHandler
	Answer   *handler.AnswerHandler
	Class    *handler.ClassHandler
	Monitor  *handler.MonitorHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// loginLimiter may be nil to disable rate limiting.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	loginLimiter *middleware.RateLimiter,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// XLSX is already zip-compressed.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return strings.HasSuffix(c.Request.URL.Path, "/export")
		},
	}))

	// Health check.
	router.GET("/health", handlers.System.Health)

	requireAuth := middleware.RequireAuth(authService, cfg.CookieName)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	if loginLimiter != nil {
		auth.Use(loginLimiter.Middleware())
	}
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", requireAuth, handlers.Auth.Logout)
		auth.GET("/me", requireAuth, handlers.Auth.Me)
	}

	api := router.Group("/api/v1")
	api.Use(requireAuth)

	// ─── 2. Exams ──────────────────────────────────────────────────────
	exams := api.Group("/exams")
	{
		exams.GET("/class/:class_id", handlers.Exam.ListExamsByClass)
		exams.GET("/:exam_id", handlers.Exam.GetExam)

		exams.POST("", middleware.RequireStaff(), handlers.Exam.CreateExam)
		exams.PUT("/:exam_id", middleware.RequireStaff(), handlers.Exam.UpdateExam)
		exams.DELETE("/:exam_id", middleware.RequireStaff(), handlers.Exam.DeleteExam)
		exams.POST("/:exam_id/regrade", middleware.RequireStaff(), handlers.Exam.RegradeExam)
		exams.GET("/:exam_id/monitor", middleware.RequireStaff(), handlers.Monitor.MonitorExamSSE)
	}

	// ─── 3. Questions ──────────────────────────────────────────────────
	// Students receive the key-less projection from the same routes.
	questions := api.Group("/questions")
	questions.Use(middleware.NoStore())
	{
		questions.GET("", handlers.Question.ListQuestions)
		questions.GET("/exam/:exam_id", handlers.Question.ListQuestions)
		questions.GET("/:question_id", handlers.Question.GetQuestion)

		questions.POST("/exam/:exam_id", middleware.RequireStaff(), handlers.Question.AddQuestion)
		questions.PUT("/:question_id", middleware.RequireStaff(), handlers.Question.UpdateQuestion)
		questions.DELETE("/:question_id", middleware.RequireStaff(), handlers.Question.DeleteQuestion)
	}

	// ─── 4. Student Answers ────────────────────────────────────────────
	answers := api.Group("/studentAnswers")
	answers.Use(middleware.NoStore())
	{
		answers.POST("/:exam_id/autosave", middleware.RequireStudent(), handlers.Answer.Autosave)
		answers.POST("/:exam_id/submit", middleware.RequireStudent(), handlers.Answer.Submit)
		answers.GET("/:exam_id", middleware.RequireStudent(), handlers.Answer.GetMySubmission)

		staff := answers.Group("", middleware.RequireStaff())
		staff.GET("/exam/:exam_id/results", handlers.Answer.ListExamResults)
		staff.GET("/exam/:exam_id/results/export", handlers.Answer.ExportExamResults)
		staff.GET("/class/:class_id/scores", handlers.Answer.ListClassScores)
	}

	// ─── 5. Classes & Users ────────────────────────────────────────────
	api.GET("/classes", middleware.CacheControl(60), handlers.Class.ListClasses)
	api.POST("/classes", middleware.RequireAdmin(), handlers.Class.CreateClass)
	api.GET("/classes/:class_id/students", middleware.RequireStaff(), handlers.Class.ListStudents)
	api.POST("/users", middleware.RequireAdmin(), handlers.Class.CreateUser)

	// ─── 6. System Monitoring ──────────────────────────────────────────
	api.GET("/system/metrics", middleware.RequireAdmin(), handlers.System.SystemMetricsSSE)

	// ─── 7. WebSocket Group (Student) ──────────────────────────────────
	// Browsers cannot set headers on the upgrade request, so the token may
	// also come from the cookie or ?token=.
	ws := router.Group("/ws/v1")
	ws.Use(requireAuth, middleware.RequireStudent())
	{
		ws.GET("/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	return router
}
