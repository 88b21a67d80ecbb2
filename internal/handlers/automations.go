package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"trawler/pkg/api/common"
	"trawler/pkg/api/trawler"
	"trawler/pkg/logging"
	"trawler/pkg/models"
)

// TriggerAutomations runs every due automation under the configured
// wall-clock budget. An optional forceId query parameter runs one
// automation immediately regardless of schedule. A run lock stops
// overlapping cron fires from double-running.
func TriggerAutomations(c *gin.Context) {
	acquired, release := runLock.Acquire(c.Request.Context(), "automation-trigger")
	if !acquired {
		c.JSON(http.StatusConflict, common.ErrorResponse{
			Error: "an automation trigger is already running",
		})
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.TriggerBudget)
	defer cancel()

	results, err := sched.RunDue(ctx, c.Query("forceId"))
	if err != nil {
		logger.WithFields(logging.Fields{"error": err.Error()}).Error("Automation trigger failed")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{
			Error:   "failed to run automations",
			Details: map[string]interface{}{"cause": err.Error()},
		})
		return
	}

	if results == nil {
		results = []trawler.AutomationRunResult{}
	}
	c.JSON(http.StatusOK, trawler.AutomationTriggerResponse{
		Triggered: len(results),
		Results:   results,
	})
}

// ListAutomations returns automations, optionally filtered by tenant.
func ListAutomations(c *gin.Context) {
	query := `SELECT id, tenant_id, profile_id, account_handle, is_active, frequency_hours,
			last_run_at, last_run_status, next_run_at, run_count, created_at, updated_at
		FROM automations`
	args := []interface{}{}
	if tenantID := c.Query("tenantId"); tenantID != "" {
		query += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		logger.WithFields(logging.Fields{"error": err.Error()}).Error("Failed to list automations")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to list automations"})
		return
	}
	defer rows.Close()

	automations := []models.Automation{}
	for rows.Next() {
		var a models.Automation
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ProfileID, &a.AccountHandle, &a.IsActive,
			&a.FrequencyHours, &a.LastRunAt, &a.LastRunStatus, &a.NextRunAt, &a.RunCount,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to scan automation"})
			return
		}
		automations = append(automations, a)
	}

	c.JSON(http.StatusOK, gin.H{"automations": automations})
}

// CreateAutomationRequest registers a new tracked source account.
type CreateAutomationRequest struct {
	TenantID       string `json:"tenantId" binding:"required"`
	ProfileID      string `json:"profileId" binding:"required"`
	AccountHandle  string `json:"accountHandle" binding:"required"`
	FrequencyHours int    `json:"frequencyHours"`
}

// CreateAutomation registers an automation. It is immediately due, so the
// next trigger gives the new account its wide first-run scrape.
func CreateAutomation(c *gin.Context) {
	var req CreateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ValidationErrorResponse{
			Error: "invalid request",
			Fields: map[string]string{
				"tenantId":      "required",
				"profileId":     "required",
				"accountHandle": "required",
			},
		})
		return
	}
	if req.FrequencyHours <= 0 {
		req.FrequencyHours = cfg.AutomationFrequency
	}

	id := uuid.New().String()
	_, err := db.ExecContext(c.Request.Context(),
		`INSERT INTO automations (id, tenant_id, profile_id, account_handle, is_active, frequency_hours, next_run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, true, $5, NOW(), NOW(), NOW())`,
		id, req.TenantID, req.ProfileID, req.AccountHandle, req.FrequencyHours,
	)
	if err != nil {
		logger.WithFields(logging.Fields{
			"account": req.AccountHandle,
			"error":   err.Error(),
		}).Error("Failed to create automation")
		c.JSON(http.StatusConflict, common.ErrorResponse{
			Error:   "failed to create automation",
			Details: map[string]interface{}{"cause": err.Error()},
		})
		return
	}

	logger.WithFields(logging.Fields{
		"automation_id": id,
		"account":       req.AccountHandle,
		"frequency":     req.FrequencyHours,
	}).Info("Automation created")

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateAutomationRequest modifies an automation's cadence or active flag.
type UpdateAutomationRequest struct {
	FrequencyHours *int  `json:"frequencyHours"`
	IsActive       *bool `json:"isActive"`
}

// UpdateAutomation changes frequency or active state.
func UpdateAutomation(c *gin.Context) {
	var req UpdateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "invalid request"})
		return
	}
	if req.FrequencyHours == nil && req.IsActive == nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "nothing to update"})
		return
	}

	res, err := db.ExecContext(c.Request.Context(),
		`UPDATE automations
		 SET frequency_hours = COALESCE($1, frequency_hours),
		     is_active = COALESCE($2, is_active),
		     updated_at = NOW()
		 WHERE id = $3`,
		req.FrequencyHours, req.IsActive, c.Param("id"),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to update automation"})
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "automation not found"})
		return
	}

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true})
}

// DeactivateAutomation turns an automation off. Automations are never
// deleted; history and bookkeeping stay queryable.
func DeactivateAutomation(c *gin.Context) {
	res, err := db.ExecContext(c.Request.Context(),
		`UPDATE automations SET is_active = false, updated_at = NOW() WHERE id = $1`,
		c.Param("id"),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "failed to deactivate automation"})
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "automation not found"})
		return
	}

	c.JSON(http.StatusOK, common.SuccessResponse{Success: true})
}
