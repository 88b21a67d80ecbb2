package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"trawler/pkg/api/common"
	"trawler/pkg/logging"
	"trawler/pkg/models"
)

// ListContentEvents is the read path for the review UI: content events
// newest first, filterable by status and profile.
func ListContentEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	query := `SELECT id, tenant_id, profile_id, source_account, external_id, post_type, status,
			original_caption, final_caption, media_urls, external_post_id, scheduled_for,
			posted_at, created_at, updated_at
		FROM content_events WHERE 1=1`
	args := []interface{}{}

	if status := c.Query("status"); status != "" {
		args = append(args, status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if profileID := c.Query("profileId"); profileID != "" {
		args = append(args, profileID)
		query += ` AND profile_id = $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		logger.WithFields(logging.Fields{"error": err.Error()}).Error("Failed to list content events")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to list content events"})
		return
	}
	defer rows.Close()

	events := []models.ContentEvent{}
	for rows.Next() {
		var event models.ContentEvent
		if err := rows.Scan(&event.ID, &event.TenantID, &event.ProfileID, &event.SourceAccount,
			&event.ExternalID, &event.PostType, &event.Status, &event.OriginalCaption,
			&event.FinalCaption, pq.Array(&event.MediaURLs), &event.ExternalPostID,
			&event.ScheduledFor, &event.PostedAt, &event.CreatedAt, &event.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to scan content event"})
			return
		}
		events = append(events, event)
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
