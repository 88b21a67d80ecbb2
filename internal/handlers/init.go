package handlers

import (
	"context"
	"database/sql"

	"trawler/internal/ingest"
	"trawler/internal/orchestrator"
	"trawler/internal/reconciler"
	"trawler/internal/scheduler"
	"trawler/pkg/api/publisher"
	scrapeclient "trawler/pkg/clients/scrapeapi"
	"trawler/pkg/config"
	"trawler/pkg/events"
	"trawler/pkg/logging"
	"trawler/pkg/redis"
)

// PublisherAPI is the write half of the publishing platform boundary.
// Satisfied by the publishing platform client.
type PublisherAPI interface {
	CreateScheduled(ctx context.Context, req *publisher.CreatePostRequest) (*publisher.CreatePostResponse, error)
	DeleteScheduled(ctx context.Context, postID string) error
}

var (
	db       *sql.DB
	logger   logging.Logger
	cfg      config.Config
	orch     *orchestrator.Orchestrator
	pipeline *ingest.Pipeline
	sched    *scheduler.Scheduler
	recon    *reconciler.Reconciler
	scraper  *scrapeclient.Client
	pub      PublisherAPI
	producer *events.Producer
	runLock  *redis.RunLock
)

// Deps carries everything the handlers need, built once in main.
type Deps struct {
	DB           *sql.DB
	Logger       logging.Logger
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Pipeline     *ingest.Pipeline
	Scheduler    *scheduler.Scheduler
	Reconciler   *reconciler.Reconciler
	ScrapeClient *scrapeclient.Client
	Publisher    PublisherAPI
	Producer     *events.Producer
	RunLock      *redis.RunLock
}

// Init initializes the handlers with their dependencies.
func Init(deps Deps) {
	db = deps.DB
	logger = deps.Logger
	cfg = deps.Config
	orch = deps.Orchestrator
	pipeline = deps.Pipeline
	sched = deps.Scheduler
	recon = deps.Reconciler
	scraper = deps.ScrapeClient
	pub = deps.Publisher
	producer = deps.Producer
	runLock = deps.RunLock
}
