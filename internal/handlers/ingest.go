package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"trawler/internal/ingest"
	"trawler/pkg/api/common"
	"trawler/pkg/api/scrapeapi"
	"trawler/pkg/logging"
)

// ingestEnvelope covers the two object-shaped ingest bodies: an explicit
// post list, or an upstream webhook carrying a dataset reference.
type ingestEnvelope struct {
	Posts         []scrapeapi.RawPost `json:"posts"`
	EventType     string              `json:"eventType"`
	Resource      scrapeapi.Resource  `json:"resource"`
	ProfileID     string              `json:"profileId"`
	TenantID      string              `json:"tenantId"`
	SourceAccount string              `json:"sourceAccount"`
}

// IngestPosts accepts raw scraper records in any of three shapes: a bare
// JSON array, {posts: [...]}, or a scraping provider webhook whose dataset
// gets fetched before processing. Tenant and profile arrive via query or
// body.
func IngestPosts(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "failed to read request body"})
		return
	}

	posts, envelope, err := decodeIngestBody(c, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Error:   "invalid ingest payload",
			Details: map[string]interface{}{"cause": err.Error()},
		})
		return
	}

	profileID := c.Query("profileId")
	if profileID == "" {
		profileID = envelope.ProfileID
	}
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		tenantID = envelope.TenantID
	}
	if profileID == "" || tenantID == "" {
		c.JSON(http.StatusBadRequest, common.ValidationErrorResponse{
			Error: "missing required identity",
			Fields: map[string]string{
				"profileId": "required via query or body",
				"tenantId":  "required via query or body",
			},
		})
		return
	}

	sourceAccount := c.Query("sourceAccount")
	if sourceAccount == "" {
		sourceAccount = envelope.SourceAccount
	}

	result := pipeline.Run(c.Request.Context(), &ingest.Batch{
		TenantID:      tenantID,
		ProfileID:     profileID,
		SourceAccount: sourceAccount,
		Posts:         posts,
	})

	c.JSON(http.StatusOK, result)
}

// decodeIngestBody resolves the three accepted body shapes to a post list.
func decodeIngestBody(c *gin.Context, body []byte) ([]scrapeapi.RawPost, *ingestEnvelope, error) {
	envelope := &ingestEnvelope{}

	var bare []scrapeapi.RawPost
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, envelope, nil
	}

	if err := json.Unmarshal(body, envelope); err != nil {
		return nil, nil, err
	}
	if envelope.Posts != nil {
		return envelope.Posts, envelope, nil
	}
	if envelope.Resource.DefaultDatasetID != "" {
		logger.WithFields(logging.Fields{
			"event_type": envelope.EventType,
			"dataset_id": envelope.Resource.DefaultDatasetID,
		}).Info("Fetching webhook dataset")

		posts, err := scraper.FetchDataset(c.Request.Context(), envelope.Resource.DefaultDatasetID)
		if err != nil {
			return nil, nil, err
		}
		return posts, envelope, nil
	}

	return nil, envelope, nil
}
