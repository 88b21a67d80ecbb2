package reconciler

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trawler/pkg/api/publisher"
	"trawler/pkg/api/trawler"
	"trawler/pkg/events"
	"trawler/pkg/logging"
	"trawler/pkg/models"
)

const captionMatchLength = 50

// PublisherReader reads the publishing platform's view of a profile's
// posts. Satisfied by the publishing platform client.
type PublisherReader interface {
	ListScheduled(ctx context.Context, profileID string) ([]publisher.Post, error)
	ListPublished(ctx context.Context, profileID string) ([]publisher.Post, error)
}

// Reconciler corrects local content event status to match the true state of
// posts on the external publishing platform. One pass evaluates every
// candidate record against a priority-ordered list of transition cases; the
// first case that applies wins and the rest are skipped for that record.
type Reconciler struct {
	db          *sql.DB
	publisher   PublisherReader
	producer    *events.Producer
	logger      logging.Logger
	transitions *prometheus.CounterVec
	graceShort  time.Duration
	graceLong   time.Duration
	cases       []transitionCase
}

// Config wires the reconciler's collaborators.
type Config struct {
	DB          *sql.DB
	Publisher   PublisherReader
	Producer    *events.Producer
	Logger      logging.Logger
	Transitions *prometheus.CounterVec
	GraceShort  time.Duration // caption matching kicks in after this
	GraceLong   time.Duration // stale fallback kicks in after this
}

func New(cfg Config) *Reconciler {
	if cfg.GraceShort == 0 {
		cfg.GraceShort = 30 * time.Minute
	}
	if cfg.GraceLong == 0 {
		cfg.GraceLong = 60 * time.Minute
	}

	r := &Reconciler{
		db:          cfg.DB,
		publisher:   cfg.Publisher,
		producer:    cfg.Producer,
		logger:      cfg.Logger,
		transitions: cfg.Transitions,
		graceShort:  cfg.GraceShort,
		graceLong:   cfg.GraceLong,
	}
	r.cases = []transitionCase{
		{"external_deletion", r.caseExternalDeletion},
		{"past_due_with_id", r.casePastDueWithID},
		{"caption_match", r.caseCaptionMatch},
		{"stale_fallback", r.caseStaleFallback},
	}
	return r
}

// transition describes one resolved status change.
type transition struct {
	newStatus       models.ContentStatus
	reason          string
	clearExternalID bool
	setExternalID   *string
	postedAt        *time.Time
}

// transitionCase is one entry in the priority-ordered evaluation list.
type transitionCase struct {
	name  string
	apply func(event *models.ContentEvent, now time.Time, snap *platformSnapshot) *transition
}

// platformSnapshot is the publishing platform's state for one profile,
// fetched once per pass. A fetch error leaves the corresponding set nil and
// the error recorded; cases decide how to treat the ambiguity.
type platformSnapshot struct {
	scheduledIDs map[string]struct{}
	scheduledErr error
	published    []publisher.Post
	publishedIDs map[string]struct{}
	publishedErr error
}

// Reconcile runs one pass over candidate records: anything scheduled or
// approved with a concrete scheduled time. An empty profileID reconciles
// every profile with candidates. Records are independent; a failure on one
// is reported and the pass continues.
func (r *Reconciler) Reconcile(ctx context.Context, profileID string) (*trawler.ReconcileResponse, error) {
	candidates, err := r.loadCandidates(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reconciliation candidates: %w", err)
	}

	response := &trawler.ReconcileResponse{Results: []trawler.ReconcileResult{}}
	snapshots := map[string]*platformSnapshot{}
	now := time.Now().UTC()

	for _, event := range candidates {
		snap, ok := snapshots[event.ProfileID]
		if !ok {
			snap = r.fetchSnapshot(ctx, event.ProfileID)
			snapshots[event.ProfileID] = snap
		}

		caseName, change := r.evaluate(event, now, snap)
		if change == nil {
			continue
		}

		if err := r.applyTransition(ctx, event, caseName, change); err != nil {
			response.Errors = append(response.Errors,
				fmt.Sprintf("event %s: %v", event.ID, err))
			continue
		}

		response.Synced++
		response.Results = append(response.Results, trawler.ReconcileResult{
			EventID:   event.ID,
			OldStatus: string(event.Status),
			NewStatus: string(change.newStatus),
			Reason:    change.reason,
		})
	}

	return response, nil
}

// evaluate walks the case list in priority order and returns the first
// applicable transition.
func (r *Reconciler) evaluate(event *models.ContentEvent, now time.Time, snap *platformSnapshot) (string, *transition) {
	for _, c := range r.cases {
		if change := c.apply(event, now, snap); change != nil {
			return c.name, change
		}
	}
	return "", nil
}

// caseExternalDeletion rolls a still-future scheduled record back to
// pending when its scheduled post has disappeared from the platform. An
// empty fetch is "unknown", never "deleted": the case only fires when at
// least one id set actually came back non-empty.
func (r *Reconciler) caseExternalDeletion(event *models.ContentEvent, now time.Time, snap *platformSnapshot) *transition {
	if event.Status != models.StatusScheduled || event.ExternalPostID == nil {
		return nil
	}
	if event.ScheduledFor == nil || !event.ScheduledFor.After(now) {
		return nil
	}
	if len(snap.scheduledIDs)+len(snap.publishedIDs) == 0 {
		return nil
	}
	if _, found := snap.scheduledIDs[*event.ExternalPostID]; found {
		return nil
	}
	if _, found := snap.publishedIDs[*event.ExternalPostID]; found {
		return nil
	}
	return &transition{
		newStatus:       models.StatusPending,
		reason:          "scheduled post no longer exists on the platform",
		clearExternalID: true,
	}
}

// casePastDueWithID resolves past-due records that carry an external id.
// Confirmed published, or unconfirmable because the published list could
// not be fetched, means posted; confirmed absent means the publish failed
// and the record rolls back to pending.
func (r *Reconciler) casePastDueWithID(event *models.ContentEvent, now time.Time, snap *platformSnapshot) *transition {
	if event.ExternalPostID == nil || event.ScheduledFor == nil || event.ScheduledFor.After(now) {
		return nil
	}
	if snap.publishedErr != nil {
		return &transition{
			newStatus: models.StatusPosted,
			reason:    "scheduled time passed; platform state unavailable, assuming published",
			postedAt:  event.ScheduledFor,
		}
	}
	if _, found := snap.publishedIDs[*event.ExternalPostID]; found {
		return &transition{
			newStatus: models.StatusPosted,
			reason:    "confirmed in the platform's published posts",
			postedAt:  publishTimeFor(snap.published, *event.ExternalPostID, event.ScheduledFor),
		}
	}
	return &transition{
		newStatus:       models.StatusPending,
		reason:          "scheduled time passed but the platform never published the post",
		clearExternalID: true,
	}
}

// caseCaptionMatch recovers records that lost their external id linkage by
// matching the final caption against published posts: case-insensitive
// equality on the first 50 characters.
func (r *Reconciler) caseCaptionMatch(event *models.ContentEvent, now time.Time, snap *platformSnapshot) *transition {
	if event.ExternalPostID != nil || event.FinalCaption == nil || *event.FinalCaption == "" {
		return nil
	}
	if event.ScheduledFor == nil || now.Sub(*event.ScheduledFor) <= r.graceShort {
		return nil
	}

	want := captionKey(*event.FinalCaption)
	for _, post := range snap.published {
		if captionKey(post.Content) != want {
			continue
		}
		matched := post.ID
		return &transition{
			newStatus:     models.StatusPosted,
			reason:        "matched a published post by caption",
			setExternalID: &matched,
			postedAt:      coalesceTime(post.PublishedAt, event.ScheduledFor),
		}
	}
	return nil
}

// caseStaleFallback optimistically marks long-overdue records posted.
// Absence of confirmation an hour past the scheduled time is treated as a
// reporting gap, not a failed publish.
func (r *Reconciler) caseStaleFallback(event *models.ContentEvent, now time.Time, snap *platformSnapshot) *transition {
	if event.ScheduledFor == nil || now.Sub(*event.ScheduledFor) <= r.graceLong {
		return nil
	}
	return &transition{
		newStatus: models.StatusPosted,
		reason:    "stale past schedule without confirmation, assuming published",
		postedAt:  event.ScheduledFor,
	}
}

func (r *Reconciler) loadCandidates(ctx context.Context, profileID string) ([]*models.ContentEvent, error) {
	query := `SELECT id, tenant_id, profile_id, status, final_caption, external_post_id, scheduled_for
		FROM content_events
		WHERE status IN ('scheduled', 'approved') AND scheduled_for IS NOT NULL`
	args := []interface{}{}
	if profileID != "" {
		query += ` AND profile_id = $1`
		args = append(args, profileID)
	}
	query += ` ORDER BY scheduled_for ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*models.ContentEvent
	for rows.Next() {
		var event models.ContentEvent
		if err := rows.Scan(&event.ID, &event.TenantID, &event.ProfileID, &event.Status,
			&event.FinalCaption, &event.ExternalPostID, &event.ScheduledFor); err != nil {
			return nil, err
		}
		candidates = append(candidates, &event)
	}
	return candidates, rows.Err()
}

// fetchSnapshot pulls the platform's scheduled and published state for one
// profile. Fetch failures are recorded, not fatal; the cases interpret them.
func (r *Reconciler) fetchSnapshot(ctx context.Context, profileID string) *platformSnapshot {
	snap := &platformSnapshot{}

	scheduled, err := r.publisher.ListScheduled(ctx, profileID)
	if err != nil {
		snap.scheduledErr = err
		r.logger.WithFields(logging.Fields{
			"profile_id": profileID,
			"error":      err.Error(),
		}).Warn("Failed to fetch scheduled posts")
	} else {
		snap.scheduledIDs = idSet(scheduled)
	}

	published, err := r.publisher.ListPublished(ctx, profileID)
	if err != nil {
		snap.publishedErr = err
		r.logger.WithFields(logging.Fields{
			"profile_id": profileID,
			"error":      err.Error(),
		}).Warn("Failed to fetch published posts")
	} else {
		snap.published = published
		snap.publishedIDs = idSet(published)
	}

	return snap
}

// applyTransition persists one status change and emits its side effects.
func (r *Reconciler) applyTransition(ctx context.Context, event *models.ContentEvent, caseName string, change *transition) error {
	externalID := event.ExternalPostID
	if change.clearExternalID {
		externalID = nil
	}
	if change.setExternalID != nil {
		externalID = change.setExternalID
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE content_events
		 SET status = $1, external_post_id = $2, posted_at = $3, updated_at = NOW()
		 WHERE id = $4`,
		string(change.newStatus), externalID, change.postedAt, event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event_id":   event.ID,
		"old_status": string(event.Status),
		"new_status": string(change.newStatus),
		"case":       caseName,
		"reason":     change.reason,
	}).Info("Reconciled content event status")

	if r.transitions != nil {
		r.transitions.WithLabelValues(caseName).Inc()
	}

	r.producer.Emit(events.LifecycleEvent{
		EventType: events.TypeStatusTransition,
		TenantID:  event.TenantID,
		ProfileID: event.ProfileID,
		ContentID: event.ID,
		OldStatus: string(event.Status),
		NewStatus: string(change.newStatus),
		Reason:    change.reason,
	})

	return nil
}

// captionKey lowercases and truncates a caption to captionMatchLength
// characters for prefix comparison. Truncation counts runes so multibyte
// captions compare the same number of characters and never split a rune.
func captionKey(caption string) string {
	key := strings.ToLower(strings.TrimSpace(caption))
	if runes := []rune(key); len(runes) > captionMatchLength {
		key = string(runes[:captionMatchLength])
	}
	return key
}

func idSet(posts []publisher.Post) map[string]struct{} {
	set := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		set[p.ID] = struct{}{}
	}
	return set
}

func publishTimeFor(posts []publisher.Post, id string, fallback *time.Time) *time.Time {
	for _, p := range posts {
		if p.ID == id && p.PublishedAt != nil {
			return p.PublishedAt
		}
	}
	return fallback
}

func coalesceTime(preferred, fallback *time.Time) *time.Time {
	if preferred != nil {
		return preferred
	}
	return fallback
}
