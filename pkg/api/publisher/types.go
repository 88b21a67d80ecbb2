package publisher

import "time"

// Post is one post as reported by the publishing platform. Only the id,
// content, and timestamp fields are consumed.
type Post struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	Status       string     `json:"status,omitempty"`
}

// ListPostsResponse wraps the platform's post list endpoints.
type ListPostsResponse struct {
	Posts []Post `json:"posts"`
}

// MediaItem is one media attachment on a create request.
type MediaItem struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// CreatePostRequest schedules a new post on the platform.
type CreatePostRequest struct {
	ProfileID    string      `json:"profileId"`
	Content      string      `json:"content"`
	Media        []MediaItem `json:"media"`
	ScheduledFor time.Time   `json:"scheduledFor"`
}

// CreatePostResponse is the platform's reply to a create request.
type CreatePostResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the platform's error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
