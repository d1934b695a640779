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

	_ "github.com/lissa/commissions-api/docs" // Swagger docs
	"github.com/lissa/commissions-api/internal/config"
	"github.com/lissa/commissions-api/internal/database"
	"github.com/lissa/commissions-api/internal/handlers"
	"github.com/lissa/commissions-api/internal/jobs"
	"github.com/lissa/commissions-api/internal/middleware"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/services"
	"github.com/lissa/commissions-api/internal/storage"
	"github.com/lissa/commissions-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Commissions Settlement API
// @version 1.0
// @description Fortnight settlement and advance ledger for brokerage commission payouts

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

	// Initialize Sentry when DSN is configured
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

	if len(cfg.MasterUserIDs) == 0 {
		logger.Warn("MASTER_USER_IDS not set: master notifications will not be written")
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

	// Initialize storage
	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage")

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount, cfg.Location())
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, store, cfg)

	// Schedule recurring jobs
	if err := svcs.Job.Schedule(cfg.RecalcInterval, cfg.AgingCron); err != nil {
		logger.Error("Failed to schedule jobs", "error", err)
		os.Exit(1)
	}
	logger.Info("Scheduled recurring jobs", "recalc_interval", cfg.RecalcInterval, "aging_cron", cfg.AgingCron)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, store)

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
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

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

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

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Master-only routes
			master := protected.Group("")
			master.Use(middleware.RequireMaster())
			{
				master.POST("/brokers", h.Broker.Create)
				master.PUT("/brokers/:broker_id", h.Broker.Update)
				master.POST("/insurers", h.Broker.CreateInsurer)

				// Fortnight lifecycle
				master.POST("/fortnights", h.Fortnight.Create)
				master.GET("/fortnights/live", h.Fortnight.Live)
				master.GET("/fortnights/draft", h.Fortnight.Draft)
				master.PATCH("/fortnights/:fortnight_id/notify", h.Fortnight.SetNotify)
				master.POST("/fortnights/:fortnight_id/close", h.Fortnight.Close)
				master.DELETE("/fortnights/:fortnight_id", h.Fortnight.Discard)
				master.GET("/fortnights/:fortnight_id/totals", h.Fortnight.Totals)

				// Discounts
				master.GET("/fortnights/:fortnight_id/discounts", h.Fortnight.Discounts)
				master.PUT("/fortnights/:fortnight_id/discounts", h.Fortnight.StageDiscount)
				master.DELETE("/fortnights/:fortnight_id/discounts/:broker_id/:advance_id", h.Fortnight.UnstageDiscount)

				// Imports and classification
				master.POST("/fortnights/:fortnight_id/imports", h.Classifier.Ingest)
				master.GET("/fortnights/:fortnight_id/imports", h.Classifier.Imports)
				master.DELETE("/imports/:import_id", h.Classifier.DeleteImport)
				master.GET("/fortnights/:fortnight_id/items", h.Classifier.Items)
				master.GET("/fortnights/:fortnight_id/groups", h.Classifier.Groups)
				master.POST("/fortnights/:fortnight_id/groups/:entry_id/identify", h.Classifier.IdentifyGroup)
				master.GET("/items/pending/groups", h.Classifier.PendingGroups)
				master.POST("/items/identify", h.Classifier.IdentifyBatch)
				master.POST("/items/:item_id/identify", h.Classifier.Identify)
				master.POST("/items/:item_id/unidentify", h.Classifier.Unidentify)
				master.GET("/items/aged", h.Classifier.Aged)
				master.POST("/items/aged/route", h.Classifier.RouteAged)

				// Advances
				master.POST("/advances", h.Advance.Create)
				master.PATCH("/advances/:advance_id", h.Advance.Edit)
				master.DELETE("/advances/:advance_id", h.Advance.Delete)
				master.GET("/advances/:advance_id/history", h.Advance.History)
				master.POST("/advances/:advance_id/payments", h.Advance.ApplyPayment)
				master.POST("/advances/:advance_id/reassign", h.Advance.Reassign)
				master.POST("/recurrences", h.Advance.CreateRecurrence)
				master.GET("/recurrences/:recurrence_id", h.Advance.ShowRecurrence)
				master.PATCH("/recurrences/:recurrence_id", h.Advance.UpdateRecurrence)

				// Adjustment review
				master.POST("/adjustments/:report_id/approve", h.Adjustment.Approve)
				master.POST("/adjustments/:report_id/reject", h.Adjustment.Reject)
				master.POST("/adjustments/pay", h.Adjustment.MarkPaid)

				// Retentions and exports
				master.POST("/fortnights/:fortnight_id/brokers/:broker_id/retain", h.Settlement.Retain)
				master.POST("/fortnights/:fortnight_id/brokers/:broker_id/release", h.Settlement.Release)
				master.GET("/retentions", h.Settlement.Retained)
				master.GET("/fortnights/:fortnight_id/payment_instructions", h.Settlement.PaymentInstructions)
				master.GET("/fortnights/:fortnight_id/export/totals.xlsx", h.Settlement.TotalsXLSX)
				master.GET("/fortnights/:fortnight_id/export/bank.csv", h.Settlement.BankCSV)
				master.GET("/exports/adjustments", h.Settlement.AdjustmentDetail)

				// Operations
				master.GET("/audits", h.Audit.Index)
				master.GET("/audits/:entity/:entity_id", h.Audit.History)
				master.GET("/jobs/status", h.Job.Status)
				master.POST("/jobs/recalculate", h.Job.Recalculate)
			}

			// Master and broker routes; services scope brokers to their own data
			protected.GET("/brokers", h.Broker.Index)
			protected.GET("/brokers/:broker_id", h.Broker.Show)
			protected.GET("/insurers", h.Broker.Insurers)
			protected.GET("/fortnights", h.Fortnight.Index)
			protected.GET("/fortnights/:fortnight_id", h.Fortnight.Show)
			protected.GET("/advances", h.Advance.Index)
			protected.GET("/advances/:advance_id", h.Advance.Show)
			protected.GET("/recurrences", h.Advance.Recurrences)

			adjustments := protected.Group("/adjustments")
			{
				adjustments.GET("", h.Adjustment.Index)
				adjustments.POST("", h.Adjustment.Submit)
				adjustments.GET("/pending_items", h.Adjustment.PendingItems)
				adjustments.GET("/:report_id", h.Adjustment.Show)
			}

			// Static routes first so "mark_all_as_read" is not matched as :notification_id
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.GET("/unread_count", h.Notification.UnreadCount)
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
				notifications.POST("/:notification_id/mark_as_read", h.Notification.MarkAsRead)
			}
		}
	}

	return router
}
