package scrapeapi

// RawPost is one record as delivered by the scraping provider. The shape
// varies by actor, so fields are resolved dynamically by the normalizer.
type RawPost map[string]interface{}

// PrimaryRunInput is the payload for the profile-scraper actor. It filters
// by a newer-than timestamp, which is the preferred request shape.
type PrimaryRunInput struct {
	Usernames          []string `json:"usernames"`
	ResultsType        string   `json:"resultsType"`
	ResultsLimit       int      `json:"resultsLimit"`
	OnlyPostsNewerThan string   `json:"onlyPostsNewerThan"`
	AddParentData      bool     `json:"addParentData"`
}

// FallbackRunInput is the payload for the post-scraper actor, used when the
// primary shape errors or returns nothing. It filters by a day-count window
// instead of a timestamp.
type FallbackRunInput struct {
	Username     []string `json:"username"`
	ResultsLimit int      `json:"resultsLimit"`
	DaysLimit    int      `json:"daysLimit"`
}

// Resource is the run resource attached to a webhook delivery. Only the
// dataset reference is consumed.
type Resource struct {
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// WebhookPayload is the shape delivered by the provider's run-finished
// webhook.
type WebhookPayload struct {
	EventType string   `json:"eventType"`
	Resource  Resource `json:"resource"`
}
