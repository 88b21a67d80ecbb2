package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"trawler/pkg/api/common"
	"trawler/pkg/api/publisher"
	"trawler/pkg/events"
	"trawler/pkg/logging"
	"trawler/pkg/models"
)

// ScheduleRequest schedules one content event for publication.
type ScheduleRequest struct {
	ScheduledFor time.Time `json:"scheduledFor" binding:"required"`
	FinalCaption *string   `json:"finalCaption"`
	ProfileID    string    `json:"profileId"`
}

// ScheduleContentEvent creates a scheduled post on the publishing platform
// for a pending or approved content event and moves it to scheduled.
func ScheduleContentEvent(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ValidationErrorResponse{
			Error:  "invalid request",
			Fields: map[string]string{"scheduledFor": "required RFC3339 timestamp"},
		})
		return
	}

	eventID := c.Param("id")
	var event models.ContentEvent
	err := db.QueryRowContext(c.Request.Context(),
		`SELECT id, tenant_id, profile_id, status, original_caption, final_caption, media_urls
		 FROM content_events WHERE id = $1`,
		eventID,
	).Scan(&event.ID, &event.TenantID, &event.ProfileID, &event.Status,
		&event.OriginalCaption, &event.FinalCaption, pq.Array(&event.MediaURLs))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "content event not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to load content event"})
		return
	}

	if event.Status != models.StatusPending && event.Status != models.StatusApproved {
		c.JSON(http.StatusConflict, common.ErrorResponse{
			Error:   "content event cannot be scheduled",
			Details: map[string]interface{}{"status": string(event.Status)},
		})
		return
	}

	caption := ""
	if req.FinalCaption != nil {
		caption = *req.FinalCaption
	} else if event.OriginalCaption != nil {
		caption = *event.OriginalCaption
	}

	profileID := req.ProfileID
	if profileID == "" {
		profileID = event.ProfileID
	}

	media := make([]publisher.MediaItem, 0, len(event.MediaURLs))
	for _, u := range event.MediaURLs {
		media = append(media, publisher.MediaItem{Type: "image", URL: u})
	}

	created, err := pub.CreateScheduled(c.Request.Context(), &publisher.CreatePostRequest{
		ProfileID:    profileID,
		Content:      caption,
		Media:        media,
		ScheduledFor: req.ScheduledFor.UTC(),
	})
	if err != nil {
		logger.WithFields(logging.Fields{
			"event_id": eventID,
			"error":    err.Error(),
		}).Error("Failed to create scheduled post")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{
			Error:   "publishing platform rejected the post",
			Details: map[string]interface{}{"cause": err.Error()},
		})
		return
	}

	_, err = db.ExecContext(c.Request.Context(),
		`UPDATE content_events
		 SET status = $1, final_caption = $2, external_post_id = $3, scheduled_for = $4, updated_at = NOW()
		 WHERE id = $5`,
		string(models.StatusScheduled), caption, created.ID, req.ScheduledFor.UTC(), eventID,
	)
	if err != nil {
		// The platform post exists; the reconciler's caption match will
		// relink it if this record stays behind.
		logger.WithFields(logging.Fields{
			"event_id":         eventID,
			"external_post_id": created.ID,
			"error":            err.Error(),
		}).Error("Failed to persist scheduled status")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to update content event"})
		return
	}

	logger.WithFields(logging.Fields{
		"event_id":         eventID,
		"external_post_id": created.ID,
		"scheduled_for":    req.ScheduledFor.UTC(),
	}).Info("Content event scheduled")

	producer.Emit(events.LifecycleEvent{
		EventType: events.TypeStatusTransition,
		TenantID:  event.TenantID,
		ProfileID: profileID,
		ContentID: eventID,
		OldStatus: string(event.Status),
		NewStatus: string(models.StatusScheduled),
		Reason:    "scheduled on the publishing platform",
	})

	c.JSON(http.StatusOK, gin.H{"id": eventID, "externalPostId": created.ID})
}

// UnscheduleContentEvent aborts a scheduled post on the platform and rolls
// the content event back to approved.
func UnscheduleContentEvent(c *gin.Context) {
	eventID := c.Param("id")

	var event models.ContentEvent
	err := db.QueryRowContext(c.Request.Context(),
		`SELECT id, tenant_id, profile_id, status, external_post_id
		 FROM content_events WHERE id = $1`,
		eventID,
	).Scan(&event.ID, &event.TenantID, &event.ProfileID, &event.Status, &event.ExternalPostID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "content event not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to load content event"})
		return
	}

	if event.Status != models.StatusScheduled {
		c.JSON(http.StatusConflict, common.ErrorResponse{
			Error:   "content event is not scheduled",
			Details: map[string]interface{}{"status": string(event.Status)},
		})
		return
	}

	if event.ExternalPostID != nil {
		if err := pub.DeleteScheduled(c.Request.Context(), *event.ExternalPostID); err != nil {
			logger.WithFields(logging.Fields{
				"event_id":         eventID,
				"external_post_id": *event.ExternalPostID,
				"error":            err.Error(),
			}).Error("Failed to abort scheduled post")
			c.JSON(http.StatusBadGateway, common.ErrorResponse{
				Error:   "failed to abort the scheduled post",
				Details: map[string]interface{}{"cause": err.Error()},
			})
			return
		}
	}

	_, err = db.ExecContext(c.Request.Context(),
		`UPDATE content_events
		 SET status = $1, external_post_id = NULL, scheduled_for = NULL, updated_at = NOW()
		 WHERE id = $2`,
		string(models.StatusApproved), eventID,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to update content event"})
		return
	}

	logger.WithFields(logging.Fields{"event_id": eventID}).Info("Content event unscheduled")

	producer.Emit(events.LifecycleEvent{
		EventType: events.TypeStatusTransition,
		TenantID:  event.TenantID,
		ProfileID: event.ProfileID,
		ContentID: eventID,
		OldStatus: string(models.StatusScheduled),
		NewStatus: string(models.StatusApproved),
		Reason:    "scheduled post aborted",
	})

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true})
}
