package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/fintera-matching-api/docs" // Swagger docs
	"github.com/sjperalta/fintera-matching-api/internal/config"
	"github.com/sjperalta/fintera-matching-api/internal/database"
	"github.com/sjperalta/fintera-matching-api/internal/handlers"
	"github.com/sjperalta/fintera-matching-api/internal/jobs"
	"github.com/sjperalta/fintera-matching-api/internal/middleware"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/internal/services"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Fintera Matching Income API
// @version 1.0
// @description Binary matching income engine: sales ingestion, leg balances, matching bonuses and income approval
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.EnableEmailNotifications && (cfg.ResendAPIKey == "" || cfg.FromEmail == "") {
		logger.Warn("Resend email disabled: RESEND_API_KEY or FROM_EMAIL not set")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis only backs the admin stats cache, so a failure degrades instead of aborting
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis unavailable, running without stats cache", "error", err)
		redisClient = nil
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, redisClient, cfg)

	// Schedule recurring jobs
	svcs.Job.Start(cfg.MatchingSweepInterval, cfg.StatsCacheTTL, cfg.EligibilityNotifyAt)

	// Initialize handlers
	h := handlers.NewHandlers(svcs)

	// Setup router
	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	database.CloseRedis(redisClient)

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Authentication (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			protected.GET("/auth/me", h.Auth.Me)

			// Member data (admin or the member themselves)
			owner := middleware.RequireAdminOrOwner()
			protected.GET("/matching-income/user/:user_id", owner, h.MatchingIncome.UserIncome)
			protected.GET("/matching-income/team/:user_id", owner, h.MatchingIncome.TeamIncome)
			protected.GET("/leg-balance/:user_id", owner, h.LegBalance.Show)
			protected.GET("/leg-balance/:user_id/summary", owner, h.LegBalance.Summary)
			protected.GET("/leg-balance/:user_id/unmatched", owner, h.LegBalance.Unmatched)
			protected.GET("/members/:user_id/tree", owner, h.Member.Tree)
			protected.GET("/members/:user_id/downline", owner, h.Member.Downline)
			protected.GET("/users/:user_id/sales", owner, h.Sale.UserSales)

			// Notifications (users manage their own)
			// Static route first so "mark_all_as_read" is not matched as :notification_id
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
				notifications.POST("/:notification_id/mark_as_read", h.Notification.MarkAsRead)
			}

			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				incomeAdmin := admin.Group("/matching-income/admin")
				{
					incomeAdmin.GET("/all", h.MatchingIncome.AdminAll)
					incomeAdmin.GET("/stats", h.MatchingIncome.Stats)
					incomeAdmin.GET("/export", h.MatchingIncome.Export)
					incomeAdmin.PATCH("/approve/:record_id", h.MatchingIncome.Approve)
					incomeAdmin.POST("/bulk-approve", h.MatchingIncome.BulkApprove)
					incomeAdmin.PATCH("/reject/:record_id", h.MatchingIncome.Reject)
					incomeAdmin.PATCH("/status/:record_id", h.MatchingIncome.UpdateStatus)
				}

				admin.POST("/sales", h.Sale.Create)
				admin.GET("/sales", h.Sale.Index)

				admin.GET("/audits", h.Audit.Index)

				admin.GET("/jobs/status", h.Job.Status)
				admin.POST("/jobs/:name/run", h.Job.Trigger)
			}
		}
	}

	return router
}
