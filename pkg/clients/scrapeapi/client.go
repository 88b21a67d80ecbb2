package scrapeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trawler/pkg/api/scrapeapi"
	"trawler/pkg/clients"
	"trawler/pkg/logging"
)

// Client calls the scraping provider's actor-run API. Each call runs an
// actor synchronously and returns the resulting dataset items.
type Client struct {
	baseURL       string
	token         string
	primaryActor  string
	fallbackActor string
	httpClient    *http.Client
	logger        logging.Logger
	retryConfig   clients.RetryConfig
}

// Config represents the configuration for the scraping provider client.
type Config struct {
	BaseURL              string
	Token                string
	PrimaryActor         string
	FallbackActor        string
	Timeout              time.Duration
	Logger               logging.Logger
	RetryConfig          *clients.RetryConfig
	CircuitBreakerConfig *clients.CircuitBreakerConfig
}

// NewClient creates a new scraping provider client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		// Actor runs are synchronous and slow; give them room.
		config.Timeout = 120 * time.Second
	}

	retryConfig := clients.DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}
	if config.CircuitBreakerConfig != nil {
		retryConfig.CircuitBreaker = clients.NewCircuitBreaker(*config.CircuitBreakerConfig)
	}

	return &Client{
		baseURL:       config.BaseURL,
		token:         config.Token,
		primaryActor:  config.PrimaryActor,
		fallbackActor: config.FallbackActor,
		httpClient:    &http.Client{Timeout: config.Timeout},
		logger:        config.Logger,
		retryConfig:   retryConfig,
	}
}

// RunPrimary runs the profile-scraper actor with a newer-than time window.
func (c *Client) RunPrimary(ctx context.Context, handle string, lookback time.Duration) ([]scrapeapi.RawPost, error) {
	input := scrapeapi.PrimaryRunInput{
		Usernames:          []string{handle},
		ResultsType:        "posts",
		ResultsLimit:       50,
		OnlyPostsNewerThan: time.Now().UTC().Add(-lookback).Format(time.RFC3339),
		AddParentData:      false,
	}
	return c.runActor(ctx, c.primaryActor, input)
}

// RunFallback runs the post-scraper actor with a day-count window. The day
// count is rounded up so the fallback never looks back less than the
// primary would have.
func (c *Client) RunFallback(ctx context.Context, handle string, lookback time.Duration) ([]scrapeapi.RawPost, error) {
	days := int(lookback.Hours()/24) + 1
	input := scrapeapi.FallbackRunInput{
		Username:     []string{handle},
		ResultsLimit: 50,
		DaysLimit:    days,
	}
	return c.runActor(ctx, c.fallbackActor, input)
}

// FetchDataset retrieves the items of a finished run's dataset, used by the
// provider's webhook delivery path.
func (c *Client) FetchDataset(ctx context.Context, datasetID string) ([]scrapeapi.RawPost, error) {
	endpoint := fmt.Sprintf("%s/v2/datasets/%s/items?token=%s&format=json",
		c.baseURL, url.PathEscape(datasetID), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := clients.DoWithRetry(ctx, c.httpClient, req, c.retryConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dataset fetch error (%d): %s", resp.StatusCode, string(body))
	}

	var items []scrapeapi.RawPost
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode dataset items: %w", err)
	}

	return items, nil
}

func (c *Client) runActor(ctx context.Context, actor string, input interface{}) ([]scrapeapi.RawPost, error) {
	jsonBody, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s",
		c.baseURL, url.PathEscape(actor), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := clients.DoWithRetry(ctx, c.httpClient, req, c.retryConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to call scraping provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scraping provider error (%d): %s", resp.StatusCode, string(body))
	}

	var items []scrapeapi.RawPost
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode actor output: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"actor": actor,
		"items": len(items),
	}).Debug("Actor run completed")

	return items, nil
}
