package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/handler"
	"github.com/qcmhub/qcm-backend/internal/middleware"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	ExamSession   *handler.ExamSessionHandler
	StudentPortal *handler.StudentPortalHandler
	Monitor       *handler.MonitorHandler
	WS            *handler.WSHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	if handlers.System != nil {
		router.GET("/health", handlers.System.Health)
	}

	requireAuth := middleware.RequireAuth(auth)
	staff := middleware.RequireRole(model.RoleProfessor, model.RoleAdmin)

	// ─── 1. Exam Session Group (Professor / Admin) ─────────────────────
	exams := router.Group("/api/v1/exams")
	exams.Use(requireAuth)
	{
		exams.POST("", staff, handlers.ExamSession.Create)
		exams.GET("/mine", staff, handlers.ExamSession.ListMine)
		exams.GET("/all",
			middleware.RequireRole(model.RoleManager, model.RoleAdmin),
			handlers.ExamSession.ListAll,
		)
		exams.DELETE("/:id", staff, handlers.ExamSession.Delete)
		exams.GET("/:id/results", staff, middleware.NoStore(), handlers.ExamSession.Results)
		exams.GET("/:id/live", staff, middleware.NoStore(), handlers.ExamSession.Live)
		exams.GET("/:id/monitor", staff, handlers.Monitor.MonitorSessionSSE)
	}

	// ─── 2. Student Group (JWT + Student Role) ─────────────────────────
	joinLimiter := middleware.NewRateLimiter(cfg.JoinRatePerMinute, time.Minute)

	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		requireAuth,
		middleware.RequireRole(model.RoleStudent),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/exams/active", handlers.StudentPortal.ActiveExams)
		studentAPI.POST("/exams/join", joinLimiter.Middleware(), handlers.StudentPortal.JoinExam)
		studentAPI.GET("/attempts/:id", handlers.StudentPortal.GetAttemptState)
		studentAPI.PUT("/attempts/:id/answers", handlers.StudentPortal.SaveAnswer)
		studentAPI.POST("/attempts/:id/submit", handlers.StudentPortal.SubmitExam)
	}

	// ─── 3. WebSocket Group (Student) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(requireAuth, middleware.RequireRole(model.RoleStudent))
	{
		ws.GET("/student/attempts/:id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. System Group (Admin) ───────────────────────────────────────
	if handlers.System != nil {
		system := router.Group("/api/v1/system")
		system.Use(requireAuth, middleware.RequireRole(model.RoleAdmin))
		{
			system.GET("/metrics", handlers.System.Metrics)
		}
	}

	return router
}
