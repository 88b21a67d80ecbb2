package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trawler/internal/ingest"
	"trawler/pkg/api/common"
	"trawler/pkg/api/trawler"
	"trawler/pkg/logging"
)

// ScrapeRequest triggers an on-demand scrape-and-ingest for one account.
type ScrapeRequest struct {
	AccountHandle string `json:"accountHandle" binding:"required"`
	LookbackHours int    `json:"lookbackHours"`
	ProfileID     string `json:"profileId"`
	TenantID      string `json:"tenantId"`
}

// TriggerScrape runs the two-tier scrape for one account and ingests
// whatever comes back.
func TriggerScrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ValidationErrorResponse{
			Error:  "invalid request",
			Fields: map[string]string{"accountHandle": "required"},
		})
		return
	}

	if req.LookbackHours <= 0 {
		req.LookbackHours = 24
	}
	if req.ProfileID == "" {
		req.ProfileID = cfg.PublisherProfile
	}
	if req.TenantID == "" {
		req.TenantID = "default"
	}

	lookback := time.Duration(req.LookbackHours) * time.Hour
	now := time.Now().UTC()

	result, err := orch.Scrape(c.Request.Context(), req.AccountHandle, lookback)
	if err != nil {
		logger.WithFields(logging.Fields{
			"account": req.AccountHandle,
			"error":   err.Error(),
		}).Error("Scrape trigger failed")
		c.JSON(http.StatusBadGateway, common.ErrorResponse{
			Error:   "scrape failed",
			Details: map[string]interface{}{"account": req.AccountHandle, "cause": err.Error()},
		})
		return
	}

	ingestResult := pipeline.Run(c.Request.Context(), &ingest.Batch{
		TenantID:      req.TenantID,
		ProfileID:     req.ProfileID,
		SourceAccount: req.AccountHandle,
		Cutoff:        now.Add(-lookback),
		Posts:         result.Posts,
	})

	response := trawler.ScrapeResponse{
		Found:        len(result.Posts),
		IngestResult: ingestResult,
		FallbackUsed: result.FallbackUsed,
	}
	if len(result.Posts) > 0 {
		response.Sample = result.Posts[0]
	}

	c.JSON(http.StatusOK, response)
}
