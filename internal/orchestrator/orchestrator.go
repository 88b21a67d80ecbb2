package orchestrator

import (
	"context"
	"time"

	"trawler/pkg/api/scrapeapi"
	"trawler/pkg/logging"
)

// ScrapeRunner runs scraping provider actors. Satisfied by the scraping
// provider client; tests substitute a fake.
type ScrapeRunner interface {
	RunPrimary(ctx context.Context, handle string, lookback time.Duration) ([]scrapeapi.RawPost, error)
	RunFallback(ctx context.Context, handle string, lookback time.Duration) ([]scrapeapi.RawPost, error)
}

// Result is the outcome of one orchestrated scrape.
type Result struct {
	Posts        []scrapeapi.RawPost
	FallbackUsed bool
}

// Orchestrator runs the two-tier scrape policy: the primary actor first,
// the fallback actor once if the primary errors or comes back empty. It
// holds no per-run state; the same instance serves concurrent scrapes.
type Orchestrator struct {
	runner ScrapeRunner
	logger logging.Logger
}

func New(runner ScrapeRunner, logger logging.Logger) *Orchestrator {
	return &Orchestrator{runner: runner, logger: logger}
}

// Scrape fetches recent posts for one account handle. An empty result from
// both tiers is a successful scrape that found nothing, not an error; the
// caller only sees an error when both tiers fail outright.
func (o *Orchestrator) Scrape(ctx context.Context, handle string, lookback time.Duration) (*Result, error) {
	posts, primaryErr := o.runner.RunPrimary(ctx, handle, lookback)
	if primaryErr == nil && len(posts) > 0 {
		return &Result{Posts: posts}, nil
	}

	if primaryErr != nil {
		o.logger.WithFields(logging.Fields{
			"account": handle,
			"error":   primaryErr.Error(),
		}).Warn("Primary scrape failed, trying fallback")
	} else {
		o.logger.WithFields(logging.Fields{
			"account": handle,
		}).Info("Primary scrape returned nothing, trying fallback")
	}

	posts, fallbackErr := o.runner.RunFallback(ctx, handle, lookback)
	if fallbackErr != nil {
		if primaryErr != nil {
			// Both tiers down; report the primary failure as the root cause.
			return nil, primaryErr
		}
		return nil, fallbackErr
	}

	return &Result{Posts: posts, FallbackUsed: true}, nil
}
