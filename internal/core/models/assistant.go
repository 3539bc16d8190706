package models

import "errors"

// Unknown is shown when the backend does not report a value
const Unknown = "unknown"

// AssistantSummary describes one backend-held knowledge base
type AssistantSummary struct {
	AssistantID   string `json:"assistant_id"`
	SourceURL     string `json:"source_url,omitempty"` // empty when neither the backend nor the local ledger knows it
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
	LastUpdated   string `json:"last_updated"` // display string, Unknown when absent
}

// Validate checks if the summary has required fields
func (a *AssistantSummary) Validate() error {
	if a.AssistantID == "" {
		return errors.New("assistant_id is required")
	}
	if a.DocumentCount < 0 || a.ChunkCount < 0 {
		return errors.New("counts must not be negative")
	}
	return nil
}
