package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/handler"
	"github.com/acadex/examroom-backend/internal/middleware"
	"github.com/acadex/examroom-backend/internal/response"
	"github.com/acadex/examroom-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentPortal *handler.StudentPortalHandler
	Grading       *handler.GradingHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	identity *service.IdentityService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list; otherwise
	// allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(identity))
	{
		studentAPI.POST("/exams/:exam_id/join", handlers.StudentPortal.JoinExam)
		studentAPI.GET("/exams/:exam_id/paper", handlers.StudentPortal.GetExamPaper)
		studentAPI.GET("/exams/:exam_id/state", handlers.StudentPortal.GetExamState)
		studentAPI.POST("/exams/:exam_id/run", handlers.StudentPortal.RunCode)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(identity))
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamStream)
	}

	// ─── 3. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(identity))
	{
		teacherAPI.GET("/exams/:exam_id/submissions", handlers.Grading.ListSubmissions)
		teacherAPI.GET("/submissions/:session_id", handlers.Grading.GetSubmission)
		teacherAPI.PATCH("/submissions/:session_id/grades", handlers.Grading.SaveGrades)
		teacherAPI.POST("/submissions/:session_id/verify-run", handlers.Grading.VerifyRun)
	}

	return router
}
