package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trawler/pkg/logging"
	"trawler/pkg/models"
	"trawler/pkg/storage"
)

// maxMediaBytes caps one downloaded media object. Upstream CDN images stay
// well under this.
const maxMediaBytes = 25 << 20

var extensionByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"video/mp4":  "mp4",
}

// Hydrator re-hosts transient upstream media URLs into durable object
// storage. Upstream scrape URLs expire within days; nothing downstream may
// ever reference one.
type Hydrator struct {
	store      storage.MediaStore
	httpClient *http.Client
	logger     logging.Logger
	maxPerPost int
}

func NewHydrator(store storage.MediaStore, maxPerPost int, logger logging.Logger) *Hydrator {
	return &Hydrator{
		store:      store,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		maxPerPost: maxPerPost,
	}
}

// Hydrate downloads each media URL of a post, uploads it under a
// deterministic key, and returns the durable URLs. Individual media
// failures are logged and skipped; the caller decides whether zero
// survivors is fatal. Keys repeat across re-runs of the same post, so
// re-hydration overwrites rather than duplicates.
func (h *Hydrator) Hydrate(ctx context.Context, post *models.CanonicalPost) ([]string, error) {
	urls := post.MediaURLs
	if h.maxPerPost > 0 && len(urls) > h.maxPerPost {
		urls = urls[:h.maxPerPost]
	}

	var durable []string
	for i, sourceURL := range urls {
		stored, err := h.hydrateOne(ctx, post.ExternalID, i, sourceURL)
		if err != nil {
			h.logger.WithFields(logging.Fields{
				"external_id": post.ExternalID,
				"index":       i,
				"error":       err.Error(),
			}).Warn("Skipping media item")
			continue
		}
		durable = append(durable, stored)
	}

	return durable, nil
}

func (h *Hydrator) hydrateOne(ctx context.Context, externalID string, index int, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid media url: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return "", fmt.Errorf("download read failed: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty media body")
	}

	contentType := resp.Header.Get("Content-Type")
	key := fmt.Sprintf("%s_%d.%s", externalID, index, extensionFor(contentType))

	return h.store.Put(ctx, key, body, contentType)
}

func extensionFor(contentType string) string {
	// Strip any charset suffix before the lookup
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	if ext, ok := extensionByContentType[strings.TrimSpace(strings.ToLower(contentType))]; ok {
		return ext
	}
	return "jpg"
}
