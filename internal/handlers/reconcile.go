package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trawler/pkg/api/common"
	"trawler/pkg/logging"
)

// TriggerReconcile runs one reconciliation pass, optionally scoped to a
// single profile via the profileId query parameter.
func TriggerReconcile(c *gin.Context) {
	response, err := recon.Reconcile(c.Request.Context(), c.Query("profileId"))
	if err != nil {
		logger.WithFields(logging.Fields{"error": err.Error()}).Error("Reconciliation trigger failed")
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{
			Error:   "reconciliation failed",
			Details: map[string]interface{}{"cause": err.Error()},
		})
		return
	}

	c.JSON(http.StatusOK, response)
}
