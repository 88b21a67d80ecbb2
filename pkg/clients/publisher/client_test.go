package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trawler/pkg/api/publisher"
	"trawler/pkg/logging"
)

func newTestPlatform(t *testing.T, listCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(listCalls, 1)
			json.NewEncoder(w).Encode(publisher.ListPostsResponse{
				Posts: []publisher.Post{{ID: "post-1", Content: "hello"}},
			})
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(publisher.CreatePostResponse{ID: "post-2"})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func TestListScheduledCachesWithinExpiry(t *testing.T) {
	var listCalls int32
	srv := newTestPlatform(t, &listCalls)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		CacheExpiry: time.Minute,
		Logger:      logging.NewLogger(),
	})

	for i := 0; i < 3; i++ {
		posts, err := c.ListScheduled(context.Background(), "profile-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(posts) != 1 || posts[0].ID != "post-1" {
			t.Fatalf("unexpected posts: %+v", posts)
		}
	}
	if n := atomic.LoadInt32(&listCalls); n != 1 {
		t.Errorf("expected 1 platform call for repeated lists, got %d", n)
	}

	// Scheduled and published are distinct cache entries
	if _, err := c.ListPublished(context.Background(), "profile-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&listCalls); n != 2 {
		t.Errorf("expected a fresh call for the published list, got %d calls", n)
	}
}

func TestWritesInvalidateListCache(t *testing.T) {
	var listCalls int32
	srv := newTestPlatform(t, &listCalls)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		CacheExpiry: time.Minute,
		Logger:      logging.NewLogger(),
	})

	if _, err := c.ListScheduled(context.Background(), "profile-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.CreateScheduled(context.Background(), &publisher.CreatePostRequest{
		ProfileID:    "profile-1",
		Content:      "hello",
		ScheduledFor: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.ListScheduled(context.Background(), "profile-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&listCalls); n != 2 {
		t.Errorf("expected the create to invalidate the cached list, got %d calls", n)
	}

	if err := c.DeleteScheduled(context.Background(), "post-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.ListScheduled(context.Background(), "profile-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&listCalls); n != 3 {
		t.Errorf("expected the delete to invalidate the cached list, got %d calls", n)
	}
}

func TestZeroExpiryDisablesCache(t *testing.T) {
	var listCalls int32
	srv := newTestPlatform(t, &listCalls)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Logger: logging.NewLogger()})

	for i := 0; i < 2; i++ {
		if _, err := c.ListScheduled(context.Background(), "profile-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := atomic.LoadInt32(&listCalls); n != 2 {
		t.Errorf("expected every list to hit the platform without an expiry, got %d calls", n)
	}
}
