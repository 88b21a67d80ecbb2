package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"trawler/pkg/api/publisher"
	"trawler/pkg/clients"
	"trawler/pkg/logging"
)

// Client calls the external publishing platform. The service depends on
// exactly four capabilities: list scheduled posts, list published posts,
// create a scheduled post, and delete a scheduled post.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	logger      logging.Logger
	retryConfig clients.RetryConfig

	cacheExpiry time.Duration
	cacheMu     sync.Mutex
	cache       map[string]cachedList
}

type cachedList struct {
	posts     []publisher.Post
	fetchedAt time.Time
}

// Config represents the configuration for the publishing platform client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// CacheExpiry caches list responses for this long; zero disables caching.
	CacheExpiry          time.Duration
	Logger               logging.Logger
	RetryConfig          *clients.RetryConfig
	CircuitBreakerConfig *clients.CircuitBreakerConfig
}

// NewClient creates a new publishing platform client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	retryConfig := clients.DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}
	if config.CircuitBreakerConfig != nil {
		retryConfig.CircuitBreaker = clients.NewCircuitBreaker(*config.CircuitBreakerConfig)
	}

	return &Client{
		baseURL:     config.BaseURL,
		token:       config.Token,
		httpClient:  &http.Client{Timeout: config.Timeout},
		logger:      config.Logger,
		retryConfig: retryConfig,
		cacheExpiry: config.CacheExpiry,
		cache:       make(map[string]cachedList),
	}
}

// ListScheduled returns the platform's currently scheduled posts for a profile.
func (c *Client) ListScheduled(ctx context.Context, profileID string) ([]publisher.Post, error) {
	return c.listPosts(ctx, profileID, "scheduled")
}

// ListPublished returns the platform's published posts for a profile.
func (c *Client) ListPublished(ctx context.Context, profileID string) ([]publisher.Post, error) {
	return c.listPosts(ctx, profileID, "published")
}

// CreateScheduled schedules a new post with media on the platform.
func (c *Client) CreateScheduled(ctx context.Context, req *publisher.CreatePostRequest) (*publisher.CreatePostResponse, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/posts", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := clients.DoWithRetry(ctx, c.httpClient, httpReq, c.retryConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to call publishing platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("publishing platform error (%d): %s", resp.StatusCode, string(body))
	}

	var created publisher.CreatePostResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.invalidateCache()
	return &created, nil
}

// DeleteScheduled aborts a scheduled post on the platform.
func (c *Client) DeleteScheduled(ctx context.Context, postID string) error {
	endpoint := fmt.Sprintf("%s/v1/posts/%s", c.baseURL, url.PathEscape(postID))

	req, err := http.NewRequestWithContext(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := clients.DoWithRetry(ctx, c.httpClient, req, c.retryConfig)
	if err != nil {
		return fmt.Errorf("failed to call publishing platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("publishing platform error (%d): %s", resp.StatusCode, string(body))
	}

	c.invalidateCache()
	return nil
}

func (c *Client) listPosts(ctx context.Context, profileID, state string) ([]publisher.Post, error) {
	cacheKey := profileID + "/" + state
	if posts, ok := c.cachedPosts(cacheKey); ok {
		return posts, nil
	}

	endpoint := fmt.Sprintf("%s/v1/posts?profileId=%s&status=%s",
		c.baseURL, url.QueryEscape(profileID), url.QueryEscape(state))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := clients.DoWithRetry(ctx, c.httpClient, req, c.retryConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to call publishing platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("publishing platform error (%d): %s", resp.StatusCode, string(body))
	}

	var list publisher.ListPostsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.storePosts(cacheKey, list.Posts)
	return list.Posts, nil
}

func (c *Client) cachedPosts(key string) ([]publisher.Post, bool) {
	if c.cacheExpiry <= 0 {
		return nil, false
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Since(entry.fetchedAt) > c.cacheExpiry {
		return nil, false
	}
	return entry.posts, true
}

func (c *Client) storePosts(key string, posts []publisher.Post) {
	if c.cacheExpiry <= 0 {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cachedList{posts: posts, fetchedAt: time.Now()}
}

// invalidateCache drops all cached lists after a platform write so the next
// list reflects it.
func (c *Client) invalidateCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]cachedList)
}
