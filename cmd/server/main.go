package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/outreachly/outreach-service/config"
	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/handlers"
	"github.com/outreachly/outreach-service/internal/jobs"
	"github.com/outreachly/outreach-service/internal/mailer"
	"github.com/outreachly/outreach-service/internal/middleware"
	"github.com/outreachly/outreach-service/internal/scraper"
	"github.com/outreachly/outreach-service/internal/storage"
	"github.com/outreachly/outreach-service/internal/sweepers"
	"github.com/outreachly/outreach-service/internal/taskqueue"
	"github.com/outreachly/outreach-service/internal/telemetry"
	"github.com/outreachly/outreach-service/internal/tracking"
	"github.com/outreachly/outreach-service/internal/workers"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting outreach service")

	ctx := context.Background()

	telemetryCleanup := telemetry.MustInit(ctx, telemetry.GetConfigFromEnv())
	defer telemetryCleanup(ctx)

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	artifacts, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize artifact storage")
	}

	store := database.NewStore(database.Pool())
	recorder := tracking.NewRecorder(store, *logger)
	handlers.Init(artifacts, recorder)

	env := &jobs.Env{
		Discovery: store,
		Scraping:  store,
		Sending:   store,
		Artifacts: artifacts,
		Fetcher: scraper.New(scraper.Config{
			UserAgent:      cfg.Scraper.UserAgent,
			RequestTimeout: cfg.Scraper.RequestTimeout,
			RatePerSecond:  cfg.Scraper.RequestsPerSecond,
			RateBurst:      cfg.Scraper.Burst,
		}, *logger),
		Sender:          mailer.New(*logger),
		Logger:          *logger,
		TrackingBaseURL: cfg.Tracking.PublicBaseURL,
	}

	queue := taskqueue.New(database.Pool())
	worker := workers.NewOutreachWorker(queue, env, workers.WorkerConfig{
		WorkerID: cfg.Worker.ID,
		TaskTypes: []string{
			string(taskqueue.TaskTypeDiscovery),
			string(taskqueue.TaskTypeScraping),
			string(taskqueue.TaskTypeSending),
		},
		MaxTasks:   cfg.Worker.MaxTasks,
		NumWorkers: cfg.Worker.Concurrency,
		PollDelay:  cfg.Worker.PollDelay,
	}, *logger)
	worker.Start(ctx)

	taskSweeper := sweepers.NewTaskQueueSweeper(database.Pool(), logger, cfg.Worker.SweeperInterval, cfg.Worker.OrphanTimeout)
	go taskSweeper.Start(ctx)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public tracking endpoints: mail clients hit these without credentials.
	track := router.Group("/api/track")
	track.Use(middleware.RateLimitMiddleware())
	{
		track.GET("/open/:campaignId/:contactId", handlers.TrackOpen)
		track.GET("/click/:campaignId/:contactId", handlers.TrackClick)
	}

	api := router.Group("/api")
	api.Use(middleware.InternalAuthMiddleware())
	api.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	api.Use(middleware.UserContextMiddleware())
	{
		discovery := api.Group("/domain-discovery")
		{
			discovery.POST("/initiate", handlers.InitiateDiscovery)
			discovery.GET("/status/:taskId", handlers.GetDiscoveryStatus)
			discovery.GET("/tasks", handlers.ListDiscoveryTasks)
			discovery.GET("/tasks/:taskId/urls", handlers.DownloadDiscoveryURLs)
		}

		scraping := api.Group("/scraper")
		{
			scraping.POST("/initiate", handlers.InitiateScraping)
			scraping.GET("/status/:taskId", handlers.GetScrapingStatus)
			scraping.GET("/tasks", handlers.ListScrapingTasks)
			scraping.GET("/tasks/:taskId/results", handlers.DownloadScrapeResults)
		}

		contacts := api.Group("/contacts")
		{
			contacts.GET("", handlers.ListContacts)
			contacts.POST("", handlers.CreateContact)
			contacts.GET("/:contactId", handlers.GetContact)
			contacts.PUT("/:contactId", handlers.UpdateContact)
			contacts.DELETE("/:contactId", handlers.DeleteContact)
			contacts.POST("/bulk-delete", handlers.BulkDeleteContacts)
			contacts.POST("/upload-csv", handlers.UploadContactsCSV)
			contacts.GET("/export/csv", handlers.ExportContactsCSV)
			contacts.GET("/export/xlsx", handlers.ExportContactsXLSX)
		}

		campaigns := api.Group("/mailer/campaigns")
		{
			campaigns.GET("", handlers.ListCampaigns)
			campaigns.POST("", handlers.CreateCampaign)
			campaigns.GET("/:campaignId", handlers.GetCampaign)
			campaigns.PUT("/:campaignId", handlers.UpdateCampaign)
			campaigns.DELETE("/:campaignId", handlers.DeleteCampaign)
			campaigns.POST("/:campaignId/contacts", handlers.AddCampaignContacts)
			campaigns.POST("/:campaignId/send", handlers.SendCampaign)
			campaigns.GET("/:campaignId/status/:sendingTaskId", handlers.GetSendingStatus)
		}

		smtp := api.Group("/smtp-config")
		{
			smtp.GET("", handlers.GetSMTPConfig)
			smtp.PUT("", handlers.PutSMTPConfig)
			smtp.DELETE("", handlers.DeleteSMTPConfig)
		}

		trackingAPI := api.Group("/tracking/:campaignId")
		{
			trackingAPI.GET("/summary", handlers.GetTrackingSummary)
			trackingAPI.GET("/opens", handlers.ListTrackingOpens)
			trackingAPI.GET("/clicks", handlers.ListTrackingClicks)
			trackingAPI.GET("/skipped", handlers.ListTrackingSkipped)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	taskSweeper.Stop()
	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "outreach-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
