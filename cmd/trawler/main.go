package main

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"trawler/internal/contentfilter"
	"trawler/internal/handlers"
	"trawler/internal/ingest"
	"trawler/internal/orchestrator"
	"trawler/internal/reconciler"
	"trawler/internal/scheduler"
	"trawler/pkg/auth"
	publisherclient "trawler/pkg/clients/publisher"
	scrapeclient "trawler/pkg/clients/scrapeapi"
	"trawler/pkg/config"
	"trawler/pkg/database"
	"trawler/pkg/events"
	"trawler/pkg/logging"
	"trawler/pkg/monitoring"
	"trawler/pkg/redis"
	"trawler/pkg/server"
	"trawler/pkg/storage"
	"trawler/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("trawler")

	config.LoadEnv(logger)
	cfg := config.Load()

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.EnsureSchema(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Redis backs the trigger run-lock; optional
	var redisClient *goredis.Client
	runLock := redis.NewRunLock(nil, cfg.TriggerBudget)
	if cfg.RedisURL != "" {
		client, err := redis.NewClientFromURL(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Run lock disabled, redis unavailable")
		} else {
			redisClient = client
			defer redisClient.Close()
			runLock = redis.NewRunLock(redisClient, cfg.TriggerBudget)
		}
	}

	// Kafka lifecycle events; optional
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		p, err := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.WithError(err).Warn("Lifecycle events disabled, kafka unavailable")
		} else {
			producer = p
			defer producer.Close()
		}
	}

	store, err := storage.NewS3Store(context.Background(), storage.Config{
		Bucket:    cfg.StorageBucket,
		Region:    cfg.StorageRegion,
		Endpoint:  cfg.StorageEndpoint,
		PublicURL: cfg.StoragePublicURL,
		AccessKey: config.GetEnv("MEDIA_ACCESS_KEY", ""),
		SecretKey: config.GetEnv("MEDIA_SECRET_KEY", ""),
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize media storage")
	}

	scrapeClient := scrapeclient.NewClient(scrapeclient.Config{
		BaseURL:       cfg.ScraperBaseURL,
		Token:         cfg.ScraperToken,
		PrimaryActor:  cfg.ScraperPrimaryActor,
		FallbackActor: cfg.ScraperFallbackActor,
		Logger:        logger,
	})
	pubClient := publisherclient.NewClient(publisherclient.Config{
		BaseURL:     cfg.PublisherBaseURL,
		Token:       cfg.PublisherToken,
		CacheExpiry: cfg.PublisherCacheExpiry,
		Logger:      logger,
	})

	metrics := monitoring.NewMetricsCollector("trawler", version.Version, version.GitCommit)
	ingestOutcomes, automationRuns, reconcileTransitions := metrics.CreatePipelineMetrics()

	pipeline := ingest.NewPipeline(ingest.Config{
		DB:             db,
		Filter:         contentfilter.New(cfg.MaxPostsPerRun),
		Hydrator:       ingest.NewHydrator(store, cfg.MaxMediaPerPost, logger),
		Producer:       producer,
		Logger:         logger,
		IngestOutcomes: ingestOutcomes,
	})
	orch := orchestrator.New(scrapeClient, logger)
	sched := scheduler.New(scheduler.Config{
		DB:               db,
		Scraper:          orch,
		Ingestor:         pipeline,
		Logger:           logger,
		AutomationRuns:   automationRuns,
		FirstRunLookback: time.Duration(cfg.FirstRunLookbackHrs) * time.Hour,
	})
	recon := reconciler.New(reconciler.Config{
		DB:          db,
		Publisher:   pubClient,
		Producer:    producer,
		Logger:      logger,
		Transitions: reconcileTransitions,
		GraceShort:  cfg.ReconcileGraceShort,
		GraceLong:   cfg.ReconcileGraceLong,
	})

	handlers.Init(handlers.Deps{
		DB:           db,
		Logger:       logger,
		Config:       cfg,
		Orchestrator: orch,
		Pipeline:     pipeline,
		Scheduler:    sched,
		Reconciler:   recon,
		ScrapeClient: scrapeClient,
		Publisher:    pubClient,
		Producer:     producer,
		RunLock:      runLock,
	})

	healthChecker := monitoring.NewHealthChecker("trawler", version.Version)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	if redisClient != nil {
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	}
	if producer != nil {
		healthChecker.AddCheck("kafka", monitoring.KafkaHealthCheck(producer.Client()))
	}
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":   cfg.DatabaseURL,
		"SCRAPER_TOKEN":  cfg.ScraperToken,
		"TRIGGER_SECRET": cfg.TriggerSecret,
	}))

	router := server.SetupServiceRouter(logger, "trawler", healthChecker, metrics)

	v1 := router.Group("/v1")
	{
		v1.POST("/scrape", handlers.TriggerScrape)
		v1.POST("/ingest", handlers.IngestPosts)
		v1.GET("/content", handlers.ListContentEvents)
		v1.POST("/content/:id/schedule", handlers.ScheduleContentEvent)
		v1.DELETE("/content/:id/schedule", handlers.UnscheduleContentEvent)

		v1.GET("/automations", handlers.ListAutomations)
		v1.POST("/automations", handlers.CreateAutomation)
		v1.PUT("/automations/:id", handlers.UpdateAutomation)
		v1.DELETE("/automations/:id", handlers.DeactivateAutomation)

		triggers := v1.Group("/", auth.ServiceAuthMiddleware(cfg.TriggerSecret))
		{
			triggers.POST("automations/trigger", handlers.TriggerAutomations)
			triggers.POST("reconcile", handlers.TriggerReconcile)
		}
	}

	srvConfig := server.DefaultConfig("trawler", "18050")
	if err := server.Start(srvConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
