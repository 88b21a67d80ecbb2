package trawler

import "trawler/pkg/api/scrapeapi"

// ItemOutcome is the per-post outcome of one ingest batch item.
type ItemOutcome struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

// IngestResult summarizes one ingest batch.
type IngestResult struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Details   []ItemOutcome `json:"details"`
}

// ScrapeResponse is returned by the scrape trigger endpoint.
type ScrapeResponse struct {
	Found        int               `json:"found"`
	IngestResult *IngestResult     `json:"ingestResult,omitempty"`
	FallbackUsed bool              `json:"fallbackUsed"`
	Sample       scrapeapi.RawPost `json:"sample,omitempty"`
}

// AutomationRunResult is the outcome of one automation in a trigger batch.
type AutomationRunResult struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// AutomationTriggerResponse is returned by the automation trigger endpoint.
type AutomationTriggerResponse struct {
	Triggered int                   `json:"triggered"`
	Results   []AutomationRunResult `json:"results"`
}

// ReconcileResult is one status transition produced by a reconciliation pass.
type ReconcileResult struct {
	EventID   string `json:"eventId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
	Reason    string `json:"reason"`
}

// ReconcileResponse is returned by the reconciliation trigger endpoint.
type ReconcileResponse struct {
	Synced  int               `json:"synced"`
	Results []ReconcileResult `json:"results"`
	Errors  []string          `json:"errors,omitempty"`
}
