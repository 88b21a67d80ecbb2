package models

import "time"

// ContentStatus is the lifecycle status of a content event.
type ContentStatus string

const (
	StatusPending   ContentStatus = "pending"
	StatusApproved  ContentStatus = "approved"
	StatusScheduled ContentStatus = "scheduled"
	StatusPosted    ContentStatus = "posted"
	StatusDiscarded ContentStatus = "discarded"
)

// Post types persisted on content events. Video never reaches persistence;
// it is rejected by the content filter.
const (
	PostTypeImage    = "image"
	PostTypeCarousel = "carousel"
)

// ContentEvent is the persisted lifecycle record tracking a post from
// discovery through publication. Records are never deleted, only marked
// discarded.
type ContentEvent struct {
	ID              string        `json:"id" db:"id"`
	TenantID        string        `json:"tenant_id" db:"tenant_id"`
	ProfileID       string        `json:"profile_id" db:"profile_id"`
	SourceAccount   string        `json:"source_account" db:"source_account"`
	ExternalID      string        `json:"external_id" db:"external_id"`
	PostType        string        `json:"post_type" db:"post_type"`
	Status          ContentStatus `json:"status" db:"status"`
	OriginalCaption *string       `json:"original_caption,omitempty" db:"original_caption"`
	FinalCaption    *string       `json:"final_caption,omitempty" db:"final_caption"`
	MediaURLs       []string      `json:"media_urls" db:"media_urls"`
	ExternalPostID  *string       `json:"external_post_id,omitempty" db:"external_post_id"`
	ScheduledFor    *time.Time    `json:"scheduled_for,omitempty" db:"scheduled_for"`
	PostedAt        *time.Time    `json:"posted_at,omitempty" db:"posted_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Automation drives periodic scrape-and-ingest runs for one tracked source
// account.
type Automation struct {
	ID             string     `json:"id" db:"id"`
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	ProfileID      string     `json:"profile_id" db:"profile_id"`
	AccountHandle  string     `json:"account_handle" db:"account_handle"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	FrequencyHours int        `json:"frequency_hours" db:"frequency_hours"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	LastRunStatus  *string    `json:"last_run_status,omitempty" db:"last_run_status"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty" db:"next_run_at"`
	RunCount       int        `json:"run_count" db:"run_count"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// MediaKind classifies a canonical post's media.
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindCarousel MediaKind = "carousel"
)

// CanonicalPost is the normalized, source-agnostic representation of one
// scraped social media post. MediaURLs are transient upstream URLs until
// hydration re-hosts them.
type CanonicalPost struct {
	ExternalID  string
	Kind        MediaKind
	Caption     *string
	CapturedAt  *time.Time
	MediaURLs   []string
	OwnerHandle string
	IsPinned    bool
	ProductType string
}

// PostType maps the canonical media kind to the persisted post type.
func (p *CanonicalPost) PostType() string {
	if p.Kind == KindCarousel {
		return PostTypeCarousel
	}
	return PostTypeImage
}
