package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"trawler/internal/contentfilter"
	"trawler/internal/normalizer"
	"trawler/pkg/api/scrapeapi"
	"trawler/pkg/api/trawler"
	"trawler/pkg/events"
	"trawler/pkg/logging"
	"trawler/pkg/models"
)

// Outcome values surfaced per item in ingest results.
const (
	OutcomeIngested  = "ingested"
	OutcomeDuplicate = "duplicate"
)

// Pipeline turns raw scraped records into persisted content events. Each
// item is processed independently; one bad record never aborts the batch.
type Pipeline struct {
	db             *sql.DB
	filter         *contentfilter.Filter
	hydrator       *Hydrator
	producer       *events.Producer
	logger         logging.Logger
	ingestOutcomes *prometheus.CounterVec
}

// Config wires the ingest pipeline's collaborators.
type Config struct {
	DB             *sql.DB
	Filter         *contentfilter.Filter
	Hydrator       *Hydrator
	Producer       *events.Producer
	Logger         logging.Logger
	IngestOutcomes *prometheus.CounterVec
}

func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		db:             cfg.DB,
		filter:         cfg.Filter,
		hydrator:       cfg.Hydrator,
		producer:       cfg.Producer,
		logger:         cfg.Logger,
		ingestOutcomes: cfg.IngestOutcomes,
	}
}

// Batch identifies where a batch of raw posts came from and who owns it.
// SourceAccount may be empty for externally delivered batches; each post
// then falls back to its own normalized owner handle.
type Batch struct {
	TenantID      string
	ProfileID     string
	SourceAccount string
	Cutoff        time.Time
	Posts         []scrapeapi.RawPost
}

func (b *Batch) accountFor(post *models.CanonicalPost) string {
	if b.SourceAccount != "" {
		return b.SourceAccount
	}
	return post.OwnerHandle
}

// Run processes one batch end to end: normalize, filter, dedup, hydrate
// media, persist. The result accounts for every input item.
func (p *Pipeline) Run(ctx context.Context, batch *Batch) *trawler.IngestResult {
	result := &trawler.IngestResult{Details: []trawler.ItemOutcome{}}

	accepted := p.normalizeAndFilter(batch, result)
	accepted = p.filter.Cap(accepted)

	for _, post := range accepted {
		outcome := p.ingestOne(ctx, batch, post)
		result.Details = append(result.Details, trawler.ItemOutcome{ID: post.ExternalID, Result: outcome})

		switch outcome {
		case OutcomeIngested:
			result.Processed++
		case OutcomeDuplicate:
			result.Skipped++
		default:
			result.Errors++
		}
		p.countOutcome(outcome)
	}

	return result
}

// normalizeAndFilter resolves raw records into canonical posts and applies
// the acceptance policy, recording skips and normalization failures as they
// happen. Only accepted posts come back.
func (p *Pipeline) normalizeAndFilter(batch *Batch, result *trawler.IngestResult) []*models.CanonicalPost {
	var accepted []*models.CanonicalPost

	for i, raw := range batch.Posts {
		post, err := normalizer.Normalize(raw)
		if err != nil {
			result.Errors++
			result.Details = append(result.Details, trawler.ItemOutcome{
				ID:     fmt.Sprintf("item-%d", i),
				Result: "error: " + err.Error(),
			})
			p.countOutcome("normalize_error")
			continue
		}

		decision := p.filter.Evaluate(post, batch.Cutoff)
		if !decision.Accepted {
			result.Skipped++
			result.Details = append(result.Details, trawler.ItemOutcome{
				ID:     post.ExternalID,
				Result: "skipped: " + decision.Reason,
			})
			p.countOutcome("skipped_" + decision.Reason)
			continue
		}

		accepted = append(accepted, post)
	}

	return accepted
}

// ingestOne hydrates and persists a single accepted post. Returns one of
// the outcome constants or an error description.
func (p *Pipeline) ingestOne(ctx context.Context, batch *Batch, post *models.CanonicalPost) string {
	sourceAccount := batch.accountFor(post)
	if sourceAccount == "" {
		return "error: no source account"
	}

	// Cheap existence probe before paying for media downloads. The unique
	// index is still the authority; this only avoids wasted hydration.
	exists, err := p.eventExists(ctx, sourceAccount, post.ExternalID)
	if err != nil {
		p.logger.WithFields(logging.Fields{
			"external_id": post.ExternalID,
			"error":       err.Error(),
		}).Error("Failed to check for existing content event")
		return "error: existence check failed"
	}
	if exists {
		return OutcomeDuplicate
	}

	mediaURLs, err := p.hydrator.Hydrate(ctx, post)
	if err != nil {
		p.logger.WithFields(logging.Fields{
			"external_id": post.ExternalID,
			"error":       err.Error(),
		}).Error("Media hydration failed")
		return "error: " + err.Error()
	}
	if len(mediaURLs) == 0 {
		return "error: no valid media"
	}

	eventID := uuid.New().String()
	inserted, err := p.insertEvent(ctx, eventID, batch, sourceAccount, post, mediaURLs)
	if err != nil {
		p.logger.WithFields(logging.Fields{
			"external_id": post.ExternalID,
			"error":       err.Error(),
		}).Error("Failed to insert content event")
		return "error: insert failed"
	}
	if !inserted {
		// Lost the race to a concurrent batch; the unique index held.
		return OutcomeDuplicate
	}

	p.logger.WithFields(logging.Fields{
		"event_id":       eventID,
		"external_id":    post.ExternalID,
		"source_account": sourceAccount,
		"post_type":      post.PostType(),
		"media_count":    len(mediaURLs),
	}).Info("Content event ingested")

	p.producer.Emit(events.LifecycleEvent{
		EventType:  events.TypeContentIngested,
		TenantID:   batch.TenantID,
		ProfileID:  batch.ProfileID,
		ContentID:  eventID,
		ExternalID: post.ExternalID,
		NewStatus:  string(models.StatusPending),
	})

	return OutcomeIngested
}

func (p *Pipeline) eventExists(ctx context.Context, sourceAccount, externalID string) (bool, error) {
	var one int
	err := p.db.QueryRowContext(ctx,
		`SELECT 1 FROM content_events WHERE source_account = $1 AND external_id = $2`,
		sourceAccount, externalID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// insertEvent persists the content event. The ON CONFLICT clause targets the
// unique (source_account, external_id) index so concurrent duplicate inserts
// collapse to a no-op instead of an error.
func (p *Pipeline) insertEvent(ctx context.Context, eventID string, batch *Batch, sourceAccount string, post *models.CanonicalPost, mediaURLs []string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO content_events (id, tenant_id, profile_id, source_account, external_id, post_type, status, original_caption, media_urls, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 ON CONFLICT (source_account, external_id) DO NOTHING`,
		eventID, batch.TenantID, batch.ProfileID, sourceAccount,
		post.ExternalID, post.PostType(), string(models.StatusPending),
		post.Caption, pq.Array(mediaURLs),
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (p *Pipeline) countOutcome(outcome string) {
	if p.ingestOutcomes != nil {
		p.ingestOutcomes.WithLabelValues(outcome).Inc()
	}
}
