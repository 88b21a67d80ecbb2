package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"trawler/pkg/api/scrapeapi"
	"trawler/pkg/logging"
)

type fakeRunner struct {
	primaryPosts  []scrapeapi.RawPost
	primaryErr    error
	fallbackPosts []scrapeapi.RawPost
	fallbackErr   error
	primaryCalls  int
	fallbackCalls int
}

func (f *fakeRunner) RunPrimary(ctx context.Context, handle string, lookback time.Duration) ([]scrapeapi.RawPost, error) {
	f.primaryCalls++
	return f.primaryPosts, f.primaryErr
}

func (f *fakeRunner) RunFallback(ctx context.Context, handle string, lookback time.Duration) ([]scrapeapi.RawPost, error) {
	f.fallbackCalls++
	return f.fallbackPosts, f.fallbackErr
}

func testLogger() logging.Logger {
	return logging.NewLogger()
}

func TestScrapePrimarySucceeds(t *testing.T) {
	runner := &fakeRunner{
		primaryPosts: []scrapeapi.RawPost{{"id": "1"}, {"id": "2"}},
	}
	o := New(runner, testLogger())

	result, err := o.Scrape(context.Background(), "venue", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FallbackUsed {
		t.Error("fallback should not have been used")
	}
	if len(result.Posts) != 2 {
		t.Errorf("expected 2 posts, got %d", len(result.Posts))
	}
	if runner.fallbackCalls != 0 {
		t.Errorf("fallback called %d times, expected 0", runner.fallbackCalls)
	}
}

func TestScrapeFallbackOnPrimaryError(t *testing.T) {
	runner := &fakeRunner{
		primaryErr:    errors.New("actor run failed"),
		fallbackPosts: []scrapeapi.RawPost{{"id": "3"}},
	}
	o := New(runner, testLogger())

	result, err := o.Scrape(context.Background(), "venue", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FallbackUsed {
		t.Error("expected fallback flag")
	}
	if len(result.Posts) != 1 {
		t.Errorf("expected 1 post, got %d", len(result.Posts))
	}
}

func TestScrapeFallbackOnEmptyPrimary(t *testing.T) {
	runner := &fakeRunner{
		fallbackPosts: []scrapeapi.RawPost{{"id": "3"}},
	}
	o := New(runner, testLogger())

	result, err := o.Scrape(context.Background(), "venue", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FallbackUsed {
		t.Error("expected fallback flag")
	}
	if runner.primaryCalls != 1 || runner.fallbackCalls != 1 {
		t.Errorf("expected one call each, got primary=%d fallback=%d", runner.primaryCalls, runner.fallbackCalls)
	}
}

func TestScrapeBothEmptyIsSuccess(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testLogger())

	result, err := o.Scrape(context.Background(), "venue", 24*time.Hour)
	if err != nil {
		t.Fatalf("expected success on empty tiers, got %v", err)
	}
	if len(result.Posts) != 0 {
		t.Errorf("expected no posts, got %d", len(result.Posts))
	}
	if !result.FallbackUsed {
		t.Error("fallback tier ran, flag should be set")
	}
}

func TestScrapeBothFailReportsPrimaryError(t *testing.T) {
	primaryErr := errors.New("primary down")
	runner := &fakeRunner{
		primaryErr:  primaryErr,
		fallbackErr: errors.New("fallback down"),
	}
	o := New(runner, testLogger())

	_, err := o.Scrape(context.Background(), "venue", 24*time.Hour)
	if !errors.Is(err, primaryErr) {
		t.Errorf("expected the primary error as root cause, got %v", err)
	}
}

func TestScrapeFallbackOnlyFailure(t *testing.T) {
	runner := &fakeRunner{
		fallbackErr: errors.New("fallback down"),
	}
	o := New(runner, testLogger())

	_, err := o.Scrape(context.Background(), "venue", 24*time.Hour)
	if err == nil {
		t.Fatal("expected an error when primary is empty and fallback fails")
	}
}
