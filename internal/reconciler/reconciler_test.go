package reconciler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"trawler/pkg/api/publisher"
	"trawler/pkg/logging"
)

type fakePublisher struct {
	scheduled    []publisher.Post
	scheduledErr error
	published    []publisher.Post
	publishedErr error
}

func (f *fakePublisher) ListScheduled(ctx context.Context, profileID string) ([]publisher.Post, error) {
	return f.scheduled, f.scheduledErr
}

func (f *fakePublisher) ListPublished(ctx context.Context, profileID string) ([]publisher.Post, error) {
	return f.published, f.publishedErr
}

func newTestReconciler(t *testing.T, pub PublisherReader) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(Config{
		DB:        db,
		Publisher: pub,
		Logger:    logging.NewLogger(),
	}), mock
}

func candidateColumns() []string {
	return []string{"id", "tenant_id", "profile_id", "status", "final_caption", "external_post_id", "scheduled_for"}
}

func strPtr(s string) *string     { return &s }
func tPtr(t time.Time) *time.Time { return &t }

func TestReconcileExternalDeletionRollsBack(t *testing.T) {
	future := time.Now().UTC().Add(2 * time.Hour)
	pub := &fakePublisher{
		scheduled: []publisher.Post{{ID: "other-post"}},
	}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "scheduled", nil, strPtr("ext-1"), tPtr(future)))
	mock.ExpectExec(`UPDATE content_events`).
		WithArgs("pending", nil, nil, "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Synced != 1 {
		t.Fatalf("expected 1 transition, got %+v", resp)
	}
	if resp.Results[0].NewStatus != "pending" {
		t.Errorf("expected rollback to pending, got %s", resp.Results[0].NewStatus)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReconcileEmptyFetchIsUnknownNotDeleted(t *testing.T) {
	future := time.Now().UTC().Add(2 * time.Hour)
	r, mock := newTestReconciler(t, &fakePublisher{})

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "scheduled", nil, strPtr("ext-1"), tPtr(future)))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Synced != 0 {
		t.Errorf("empty platform sets must not trigger deletion rollback, got %+v", resp)
	}
}

func TestReconcilePastDueConfirmedPublished(t *testing.T) {
	past := time.Now().UTC().Add(-2 * time.Hour)
	publishedAt := past.Add(5 * time.Minute)
	pub := &fakePublisher{
		published: []publisher.Post{{ID: "ext-1", PublishedAt: &publishedAt}},
	}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "scheduled", nil, strPtr("ext-1"), tPtr(past)))
	mock.ExpectExec(`UPDATE content_events`).
		WithArgs("posted", "ext-1", publishedAt, "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].NewStatus != "posted" {
		t.Errorf("expected posted, got %s", resp.Results[0].NewStatus)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReconcilePastDueFetchFailureAssumesPosted(t *testing.T) {
	past := time.Now().UTC().Add(-2 * time.Hour)
	pub := &fakePublisher{publishedErr: errors.New("platform down")}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "scheduled", nil, strPtr("ext-1"), tPtr(past)))
	mock.ExpectExec(`UPDATE content_events`).
		WithArgs("posted", "ext-1", sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Synced != 1 || resp.Results[0].NewStatus != "posted" {
		t.Fatalf("unfetchable platform state must resolve to posted, got %+v", resp)
	}
}

func TestReconcilePastDueAbsentRollsBack(t *testing.T) {
	past := time.Now().UTC().Add(-2 * time.Hour)
	pub := &fakePublisher{
		published: []publisher.Post{{ID: "someone-else"}},
	}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "scheduled", nil, strPtr("ext-1"), tPtr(past)))
	mock.ExpectExec(`UPDATE content_events`).
		WithArgs("pending", nil, nil, "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].NewStatus != "pending" {
		t.Errorf("failed publish should roll back to pending, got %s", resp.Results[0].NewStatus)
	}
}

func TestReconcileCaptionMatch(t *testing.T) {
	past := time.Now().UTC().Add(-45 * time.Minute)
	caption := "Tonight at the venue: special guest DJ set, doors at nine, free entry before ten"
	publishedAt := past.Add(time.Minute)
	pub := &fakePublisher{
		published: []publisher.Post{
			{ID: "unrelated", Content: "different caption entirely"},
			{ID: "match-1", Content: strings.ToUpper(caption), PublishedAt: &publishedAt},
		},
	}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "approved", strPtr(caption), nil, tPtr(past)))
	mock.ExpectExec(`UPDATE content_events`).
		WithArgs("posted", "match-1", publishedAt, "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Synced != 1 {
		t.Fatalf("expected a caption match transition, got %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReconcileCaptionMatchRespectsGracePeriod(t *testing.T) {
	recent := time.Now().UTC().Add(-10 * time.Minute)
	caption := "Tonight at the venue"
	pub := &fakePublisher{
		published: []publisher.Post{{ID: "match-1", Content: caption}},
	}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "approved", strPtr(caption), nil, tPtr(recent)))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Synced != 0 {
		t.Errorf("caption match inside the grace period must not fire, got %+v", resp)
	}
}

func TestReconcileCaptionMatchComparesRunes(t *testing.T) {
	past := time.Now().UTC().Add(-45 * time.Minute)
	// 25 two-byte runes: a 50-byte prefix that is only 25 characters, so the
	// comparison must still cover the diverging tails.
	prefix := strings.Repeat("é", 25)
	caption := prefix + " doors at nine"
	pub := &fakePublisher{
		published: []publisher.Post{{ID: "other-1", Content: prefix + " doors at noon"}},
	}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "approved", strPtr(caption), nil, tPtr(past)))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Synced != 0 {
		t.Errorf("multibyte captions differing within 50 characters must not match, got %+v", resp)
	}
}

func TestReconcileStaleFallback(t *testing.T) {
	stale := time.Now().UTC().Add(-90 * time.Minute)
	r, mock := newTestReconciler(t, &fakePublisher{})

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "approved", nil, nil, tPtr(stale)))
	mock.ExpectExec(`UPDATE content_events`).
		WithArgs("posted", nil, stale, "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].Reason != "stale past schedule without confirmation, assuming published" {
		t.Errorf("unexpected reason %q", resp.Results[0].Reason)
	}
}

func TestReconcileCaseOrderingPrefersPublishedConfirmation(t *testing.T) {
	// Two hours past due with an external id: eligible for both the
	// past-due case and the stale fallback. The published-set confirmation
	// must win.
	past := time.Now().UTC().Add(-2 * time.Hour)
	pub := &fakePublisher{
		published: []publisher.Post{{ID: "ext-1"}},
	}
	r, mock := newTestReconciler(t, pub)

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "scheduled", nil, strPtr("ext-1"), tPtr(past)))
	mock.ExpectExec(`UPDATE content_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].Reason != "confirmed in the platform's published posts" {
		t.Errorf("expected the published confirmation case, got %q", resp.Results[0].Reason)
	}
}

func TestReconcileIsolatesRecordFailures(t *testing.T) {
	stale := time.Now().UTC().Add(-90 * time.Minute)
	r, mock := newTestReconciler(t, &fakePublisher{})

	mock.ExpectQuery(`SELECT .+ FROM content_events`).
		WillReturnRows(sqlmock.NewRows(candidateColumns()).
			AddRow("evt-1", "tenant-1", "profile-1", "approved", nil, nil, tPtr(stale)).
			AddRow("evt-2", "tenant-1", "profile-1", "approved", nil, nil, tPtr(stale)))
	mock.ExpectExec(`UPDATE content_events`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectExec(`UPDATE content_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := r.Reconcile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %v", resp.Errors)
	}
	if resp.Synced != 1 {
		t.Errorf("second record should still reconcile, got %+v", resp)
	}
}
