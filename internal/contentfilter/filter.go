package contentfilter

import (
	"strings"
	"time"

	"trawler/pkg/models"
)

// Rejection reasons, stable strings surfaced in trigger responses and logs.
const (
	ReasonPinned      = "pinned"
	ReasonProductType = "excluded_product_type"
	ReasonVideo       = "video"
	ReasonTooOld      = "before_cutoff"
)

// excludedProductTypes are upstream product classifications that never
// enter the pipeline regardless of media kind.
var excludedProductTypes = map[string]struct{}{
	"clips": {},
	"reel":  {},
	"reels": {},
	"story": {},
}

// Decision is the filter verdict for one canonical post.
type Decision struct {
	Accepted bool
	Reason   string
}

// Filter applies the content acceptance policy. The zero value is unusable;
// build one with New.
type Filter struct {
	maxResults int
}

// New creates a filter that caps accepted batches at maxResults posts.
func New(maxResults int) *Filter {
	return &Filter{maxResults: maxResults}
}

// Evaluate checks one post against the acceptance policy. Rejection checks
// run in a fixed priority order so a post failing several rules always
// reports the same reason: pinned, then excluded product type, then video,
// then recency.
func (f *Filter) Evaluate(post *models.CanonicalPost, cutoff time.Time) Decision {
	if post.IsPinned {
		return Decision{Reason: ReasonPinned}
	}
	if _, excluded := excludedProductTypes[strings.ToLower(post.ProductType)]; excluded {
		return Decision{Reason: ReasonProductType}
	}
	if post.Kind == models.KindVideo {
		return Decision{Reason: ReasonVideo}
	}
	// A post with no capture time cannot be proven stale, so it passes.
	if post.CapturedAt != nil && post.CapturedAt.Before(cutoff) {
		return Decision{Reason: ReasonTooOld}
	}
	return Decision{Accepted: true}
}

// Cap truncates an accepted batch to the configured maximum, preserving
// upstream order.
func (f *Filter) Cap(posts []*models.CanonicalPost) []*models.CanonicalPost {
	if f.maxResults > 0 && len(posts) > f.maxResults {
		return posts[:f.maxResults]
	}
	return posts
}
