package main

import (
	"log"
	"time"

	"officer-review-api/config"
	"officer-review-api/controllers"
	"officer-review-api/middleware"
	"officer-review-api/models"
	"officer-review-api/monitor"
	"officer-review-api/routes"
	"officer-review-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()

	logFile, logWriter := config.InitLogging(cfg.Log)
	if logFile != nil {
		defer logFile.Close()
	}
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}

	// Initialize database
	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to migrate database: %v", err)
	}

	templates, err := config.LoadTemplates(cfg.Workflow.TemplatesPath)
	if err != nil {
		log.Fatalf("❌ Failed to load notification templates: %v", err)
	}
	var notifier services.Notifier = services.LogNotifier{}
	if mailer := config.NewMailer(cfg.SMTP); mailer.Configured() {
		mailNotifier, err := services.NewMailNotifier(mailer, templates)
		if err != nil {
			log.Fatalf("❌ Invalid notification templates: %v", err)
		}
		notifier = mailNotifier
	} else {
		log.Printf("⚠️  SMTP not configured, notifications will only be logged")
	}

	var summarizer services.Summarizer
	if client := services.NewHTTPSummarizer(cfg.Summary); client != nil {
		summarizer = client
	} else {
		log.Printf("⚠️  SUMMARY_API_URL not set, summaries will use the fallback text")
	}

	registry := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(registry)
	stack := services.NewStack(db, cfg, notifier, summarizer, metrics)

	// Set Gin mode
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logWriter

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatalf("❌ Invalid TRUSTED_PROXIES: %v", err)
	}
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(metrics.Instrument())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	})
	router.Use(middleware.CORSMiddleware(cfg.AppBaseURL))
	router.Use(middleware.RequestContext())

	limiter := middleware.NewRateLimiter(cfg.Limits.RPS, cfg.Limits.Burst)
	go func() {
		for range time.Tick(time.Minute) {
			limiter.Prune()
		}
	}()
	router.Use(limiter.Middleware())

	routes.SetupRoutes(router, routes.Dependencies{
		Workflow: controllers.NewWorkflowController(stack, cfg.Workflow.ReminderDays),
		Auth:     middleware.AuthMiddleware(cfg.JWTSecret, db),
		Metrics:  monitor.Handler(registry),
		LogPath:  cfg.Log.Path(),
	})

	log.Printf("🚀 Server starting on port %s", cfg.ServerPort)
	log.Printf("📊 Database connected successfully (%s)", cfg.DB.Driver)
	if cfg.GinMode == "release" {
		log.Printf("🏭 Running in production mode")
	} else {
		log.Printf("🔧 Running in development mode")
	}

	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}
