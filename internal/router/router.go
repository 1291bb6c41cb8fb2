package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/credentia/certportal-backend/internal/config"
	"github.com/credentia/certportal-backend/internal/handler"
	"github.com/credentia/certportal-backend/internal/middleware"
	"github.com/credentia/certportal-backend/internal/response"
	"github.com/credentia/certportal-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt     *handler.AttemptHandler
	Certificate *handler.CertificateHandler
	Monitor     *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	identity *service.IdentityService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
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

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	// QR verification must work for anyone scanning a certificate.
	publicAPI := router.Group("/api/v1")
	{
		publicAPI.GET("/verify/:certificate_no", handlers.Certificate.Verify)
	}

	// Heartbeats arrive every few seconds per active attempt; the limiter
	// keys by user id so one student cannot exhaust another's budget.
	attemptLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── 1. Student Group (JWT + Role) ─────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireJWT(identity),
		middleware.RequireStudent(),
		attemptLimiter.Middleware(),
	)
	{
		studentAPI.POST("/exams/:exam_id/attempts", handlers.Attempt.StartExam)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttemptState)
		studentAPI.PUT("/attempts/:attempt_id/answers", handlers.Attempt.SaveAnswers)
		studentAPI.POST("/attempts/:attempt_id/heartbeat", handlers.Attempt.Heartbeat)
		studentAPI.POST("/attempts/:attempt_id/security-events", handlers.Attempt.RecordSecurityEvent)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.SubmitExam)

		studentAPI.GET("/results", handlers.Attempt.ListResults)
		studentAPI.GET("/certificates", handlers.Certificate.ListMine)
		studentAPI.GET("/certificates/:certificate_id/download", handlers.Certificate.Download)
	}

	// ─── 2. WebSocket Group (WS Auth + Faculty) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(identity),
		middleware.RequireFaculty(),
	)
	{
		ws.GET("/faculty/exams/:exam_id/monitor", handlers.Monitor.ExamMonitorStream)
	}

	return router
}
