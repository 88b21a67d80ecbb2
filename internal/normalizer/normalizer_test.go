package normalizer

import (
	"testing"
	"time"

	"trawler/pkg/api/scrapeapi"
	"trawler/pkg/models"
)

func TestNormalizeIdentityResolution(t *testing.T) {
	tests := []struct {
		name     string
		raw      scrapeapi.RawPost
		expected string
	}{
		{
			name:     "id wins over shortCode",
			raw:      scrapeapi.RawPost{"id": "3112223334445556667", "shortCode": "CxYz12ab"},
			expected: "3112223334445556667",
		},
		{
			name:     "numeric id formatted as integer",
			raw:      scrapeapi.RawPost{"id": float64(12345)},
			expected: "12345",
		},
		{
			name:     "shortCode when no id",
			raw:      scrapeapi.RawPost{"shortCode": "CxYz12ab"},
			expected: "CxYz12ab",
		},
		{
			name:     "snake case shortcode",
			raw:      scrapeapi.RawPost{"shortcode": "AbC-12_x"},
			expected: "AbC-12_x",
		},
		{
			name:     "shortcode derived from url",
			raw:      scrapeapi.RawPost{"url": "https://www.instagram.com/p/CxYz12ab/"},
			expected: "CxYz12ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if post.ExternalID != tt.expected {
				t.Errorf("expected external id %q, got %q", tt.expected, post.ExternalID)
			}
		})
	}
}

func TestNormalizeNoIdentity(t *testing.T) {
	raw := scrapeapi.RawPost{"caption": "no identifying keys here"}

	_, err := Normalize(raw)
	if err == nil {
		t.Fatal("expected an error for a record without identity")
	}
	if _, ok := err.(*NormalizationError); !ok {
		t.Errorf("expected *NormalizationError, got %T", err)
	}
}

func TestNormalizeCaptionChain(t *testing.T) {
	tests := []struct {
		name     string
		raw      scrapeapi.RawPost
		expected string
	}{
		{
			name:     "caption preferred",
			raw:      scrapeapi.RawPost{"id": "1", "caption": "direct", "title": "ignored"},
			expected: "direct",
		},
		{
			name:     "captionText fallback",
			raw:      scrapeapi.RawPost{"id": "1", "captionText": "secondary"},
			expected: "secondary",
		},
		{
			name:     "title fallback",
			raw:      scrapeapi.RawPost{"id": "1", "title": "tertiary"},
			expected: "tertiary",
		},
		{
			name: "graph edge fallback",
			raw: scrapeapi.RawPost{
				"id": "1",
				"edge_media_to_caption": map[string]interface{}{
					"edges": []interface{}{
						map[string]interface{}{
							"node": map[string]interface{}{"text": "from the edge"},
						},
					},
				},
			},
			expected: "from the edge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if post.Caption == nil {
				t.Fatal("expected a caption")
			}
			if *post.Caption != tt.expected {
				t.Errorf("expected caption %q, got %q", tt.expected, *post.Caption)
			}
		})
	}
}

func TestNormalizeMissingCaptionIsNil(t *testing.T) {
	post, err := Normalize(scrapeapi.RawPost{"id": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.Caption != nil {
		t.Errorf("expected nil caption, got %q", *post.Caption)
	}
}

func TestNormalizeMediaMerge(t *testing.T) {
	raw := scrapeapi.RawPost{
		"id":        "1",
		"type":      "Sidecar",
		"images":    []interface{}{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		"imageUrls": []interface{}{"https://cdn.example.com/b.jpg"},
		"imageUrl":  "https://cdn.example.com/c.jpg",
		"displayResources": []interface{}{
			map[string]interface{}{"src": "https://cdn.example.com/d.jpg"},
		},
		"childPosts": []interface{}{
			map[string]interface{}{"displayUrl": "https://cdn.example.com/child.jpg"},
			map[string]interface{}{"displayUrl": "https://cdn.example.com/a.jpg"},
		},
	}

	post, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/b.jpg",
		"https://cdn.example.com/c.jpg",
		"https://cdn.example.com/d.jpg",
		"https://cdn.example.com/child.jpg",
	}
	if len(post.MediaURLs) != len(expected) {
		t.Fatalf("expected %d media urls, got %d: %v", len(expected), len(post.MediaURLs), post.MediaURLs)
	}
	for i, u := range expected {
		if post.MediaURLs[i] != u {
			t.Errorf("media url %d: expected %q, got %q", i, u, post.MediaURLs[i])
		}
	}
	if post.Kind != models.KindCarousel {
		t.Errorf("expected carousel kind, got %s", post.Kind)
	}
}

func TestNormalizeKindClassification(t *testing.T) {
	tests := []struct {
		rawType  string
		expected models.MediaKind
	}{
		{"Sidecar", models.KindCarousel},
		{"GraphSidecar", models.KindCarousel},
		{"carousel", models.KindCarousel},
		{"Video", models.KindVideo},
		{"GraphVideo", models.KindVideo},
		{"Image", models.KindImage},
		{"", models.KindImage},
		{"something-else", models.KindImage},
	}

	for _, tt := range tests {
		t.Run("type "+tt.rawType, func(t *testing.T) {
			post, err := Normalize(scrapeapi.RawPost{"id": "1", "type": tt.rawType})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if post.Kind != tt.expected {
				t.Errorf("type %q: expected %s, got %s", tt.rawType, tt.expected, post.Kind)
			}
		})
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		raw      scrapeapi.RawPost
		expected time.Time
	}{
		{
			name:     "iso timestamp",
			raw:      scrapeapi.RawPost{"id": "1", "timestamp": "2026-08-14T10:30:00.000Z"},
			expected: time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "unix seconds",
			raw:      scrapeapi.RawPost{"id": "1", "taken_at_timestamp": float64(1755167400)},
			expected: time.Unix(1755167400, 0).UTC(),
		},
		{
			name:     "locale string",
			raw:      scrapeapi.RawPost{"id": "1", "date": "8/14/2026, 10:30:00 AM"},
			expected: time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if post.CapturedAt == nil {
				t.Fatal("expected a capture time")
			}
			if !post.CapturedAt.Equal(tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, post.CapturedAt)
			}
		})
	}
}

func TestNormalizeUnparseableTimestampIsNil(t *testing.T) {
	post, err := Normalize(scrapeapi.RawPost{"id": "1", "timestamp": "not a date"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.CapturedAt != nil {
		t.Errorf("expected nil capture time, got %v", post.CapturedAt)
	}
}

func TestNormalizePinnedAndProductType(t *testing.T) {
	post, err := Normalize(scrapeapi.RawPost{
		"id":          "1",
		"isPinned":    true,
		"productType": "clips",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !post.IsPinned {
		t.Error("expected pinned")
	}
	if post.ProductType != "clips" {
		t.Errorf("expected product type clips, got %q", post.ProductType)
	}
}
