package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trawler/internal/ingest"
	"trawler/internal/orchestrator"
	"trawler/pkg/api/trawler"
	"trawler/pkg/logging"
	"trawler/pkg/models"
)

// Run statuses written to automation bookkeeping.
const (
	runStatusSuccess = "success"
	runStatusError   = "error"
)

// Scraper runs the two-tier scrape for one account. Satisfied by the
// orchestrator.
type Scraper interface {
	Scrape(ctx context.Context, handle string, lookback time.Duration) (*orchestrator.Result, error)
}

// Ingestor persists a scraped batch. Satisfied by the ingest pipeline.
type Ingestor interface {
	Run(ctx context.Context, batch *ingest.Batch) *trawler.IngestResult
}

// Scheduler drives periodic scrape-and-ingest runs over the automations
// table. One invocation processes every due automation sequentially,
// isolating failures per automation.
type Scheduler struct {
	db               *sql.DB
	scraper          Scraper
	ingestor         Ingestor
	logger           logging.Logger
	automationRuns   *prometheus.CounterVec
	firstRunLookback time.Duration
}

// Config wires the scheduler's collaborators.
type Config struct {
	DB               *sql.DB
	Scraper          Scraper
	Ingestor         Ingestor
	Logger           logging.Logger
	AutomationRuns   *prometheus.CounterVec
	FirstRunLookback time.Duration
}

func New(cfg Config) *Scheduler {
	return &Scheduler{
		db:               cfg.DB,
		scraper:          cfg.Scraper,
		ingestor:         cfg.Ingestor,
		logger:           cfg.Logger,
		automationRuns:   cfg.AutomationRuns,
		firstRunLookback: cfg.FirstRunLookback,
	}
}

// RunDue executes every automation whose next run time has arrived. A
// non-empty forceID runs that single automation immediately regardless of
// schedule. Stops early if the context expires; automations not reached
// stay due and are picked up by the next trigger.
func (s *Scheduler) RunDue(ctx context.Context, forceID string) ([]trawler.AutomationRunResult, error) {
	automations, err := s.dueAutomations(ctx, forceID)
	if err != nil {
		return nil, err
	}

	var results []trawler.AutomationRunResult
	for _, automation := range automations {
		if ctx.Err() != nil {
			s.logger.WithFields(logging.Fields{
				"remaining": len(automations) - len(results),
			}).Warn("Trigger budget exhausted, deferring remaining automations")
			break
		}
		results = append(results, s.runOne(ctx, automation))
	}

	return results, nil
}

func (s *Scheduler) dueAutomations(ctx context.Context, forceID string) ([]*models.Automation, error) {
	query := `SELECT id, tenant_id, profile_id, account_handle, is_active, frequency_hours, last_run_at, run_count
		FROM automations
		WHERE is_active = true AND (next_run_at IS NULL OR next_run_at <= NOW())
		ORDER BY next_run_at ASC NULLS FIRST`
	args := []interface{}{}

	if forceID != "" {
		query = `SELECT id, tenant_id, profile_id, account_handle, is_active, frequency_hours, last_run_at, run_count
			FROM automations WHERE id = $1`
		args = append(args, forceID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var automations []*models.Automation
	for rows.Next() {
		var a models.Automation
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ProfileID, &a.AccountHandle,
			&a.IsActive, &a.FrequencyHours, &a.LastRunAt, &a.RunCount); err != nil {
			return nil, err
		}
		automations = append(automations, &a)
	}
	return automations, rows.Err()
}

// runOne executes a single automation: scrape, ingest, bookkeeping. Every
// outcome, success or failure, reschedules the automation one frequency
// interval out so a persistently failing account cannot hot-loop.
func (s *Scheduler) runOne(ctx context.Context, automation *models.Automation) trawler.AutomationRunResult {
	result := trawler.AutomationRunResult{
		ID:      automation.ID,
		Account: automation.AccountHandle,
	}

	now := time.Now().UTC()
	lookback := s.lookbackFor(automation, now)

	scrape, err := s.scraper.Scrape(ctx, automation.AccountHandle, lookback)
	if err != nil {
		result.Status = runStatusError
		result.Details = err.Error()
		s.logger.WithFields(logging.Fields{
			"automation_id": automation.ID,
			"account":       automation.AccountHandle,
			"error":         err.Error(),
		}).Error("Automation scrape failed")
		s.finishRun(ctx, automation, now, runStatusError)
		return result
	}

	ingestResult := s.ingestor.Run(ctx, &ingest.Batch{
		TenantID:      automation.TenantID,
		ProfileID:     automation.ProfileID,
		SourceAccount: automation.AccountHandle,
		Cutoff:        now.Add(-lookback),
		Posts:         scrape.Posts,
	})

	result.Status = runStatusSuccess
	result.Details = ingestSummary(ingestResult, scrape.FallbackUsed)

	s.logger.WithFields(logging.Fields{
		"automation_id": automation.ID,
		"account":       automation.AccountHandle,
		"found":         len(scrape.Posts),
		"processed":     ingestResult.Processed,
		"skipped":       ingestResult.Skipped,
		"errors":        ingestResult.Errors,
		"fallback_used": scrape.FallbackUsed,
	}).Info("Automation run completed")

	s.finishRun(ctx, automation, now, runStatusSuccess)
	return result
}

// lookbackFor sizes the scrape window to cover the gap since the last run,
// rounded up to whole hours. First-ever runs get the configured wide
// window.
func (s *Scheduler) lookbackFor(automation *models.Automation, now time.Time) time.Duration {
	if automation.LastRunAt == nil {
		return s.firstRunLookback
	}
	hours := int(math.Ceil(now.Sub(*automation.LastRunAt).Hours()))
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// finishRun writes run bookkeeping. next_run_at advances unconditionally.
func (s *Scheduler) finishRun(ctx context.Context, automation *models.Automation, ranAt time.Time, status string) {
	nextRun := ranAt.Add(time.Duration(automation.FrequencyHours) * time.Hour)

	_, err := s.db.ExecContext(ctx,
		`UPDATE automations
		 SET last_run_at = $1, last_run_status = $2, next_run_at = $3, run_count = run_count + 1, updated_at = NOW()
		 WHERE id = $4`,
		ranAt, status, nextRun, automation.ID,
	)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"automation_id": automation.ID,
			"error":         err.Error(),
		}).Error("Failed to update automation bookkeeping")
	}

	if s.automationRuns != nil {
		s.automationRuns.WithLabelValues(status).Inc()
	}
}

func ingestSummary(r *trawler.IngestResult, fallbackUsed bool) string {
	summary := fmt.Sprintf("processed %d, skipped %d, errors %d", r.Processed, r.Skipped, r.Errors)
	if fallbackUsed {
		summary += " (fallback)"
	}
	return summary
}
