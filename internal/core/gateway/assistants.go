package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/docet-dev/docet/internal/core/models"
	"go.uber.org/zap"
)

// StatusSuccess is the ingest status that confirms an assistant was created
const StatusSuccess = "success"

// CreateRequest asks the backend to ingest a documentation source
type CreateRequest struct {
	SourceURL        string
	AssistantID      string
	ForceReingestion bool
}

// CreateResult is the backend's answer to an ingest request
type CreateResult struct {
	Status         string
	AssistantID    string // server-confirmed; may differ from the requested id
	SourceURL      string
	DetectedType   string
	Connector      string
	TotalDocuments int
	Message        string
	Error          string
}

// Succeeded reports whether the payload carries an explicit success status
func (r *CreateResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Reason returns the most specific failure text in the payload, if any
func (r *CreateResult) Reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// Analysis describes what the backend detected at a source URL
type Analysis struct {
	URL          string
	Status       string // supported, unsupported or error
	DetectedType string
	Confidence   float64
	Connector    string
	Title        string
	Description  string
	Error        string
}

// Supported reports whether the backend can ingest the source
func (a *Analysis) Supported() bool {
	return a.Status == "supported"
}

// Stats is the backend's view of one assistant's knowledge base
type Stats struct {
	AssistantID    string
	CollectionName string
	DocumentCount  int
	EmbeddingModel string
	RAGEnabled     bool
	LLM            map[string]any
	Error          string
}

// SupportedSources lists the connectors the backend offers
type SupportedSources struct {
	Connectors    []string
	Types         []string
	AutoDetection bool
	VersionAware  bool
}

// ListAssistants returns every assistant the backend knows. An empty list is not an error.
func (c *Client) ListAssistants(ctx context.Context) ([]models.AssistantSummary, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	var resp wireChatbotList
	err := c.withRetry(ctx, "list_assistants", func() error {
		resp = wireChatbotList{}
		return c.do(ctx, "list_assistants", http.MethodGet, "/ingestion/chatbots", nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.AssistantSummary, 0, len(resp.Chatbots))
	for _, cb := range resp.Chatbots {
		s := cb.summary()
		if err := s.Validate(); err != nil {
			c.log.Debug("skipping malformed assistant", zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// AssistantExists reports whether id appears in the backend's assistant list
func (c *Client) AssistantExists(ctx context.Context, id string) (bool, error) {
	list, err := c.ListAssistants(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range list {
		if a.AssistantID == id {
			return true, nil
		}
	}
	return false, nil
}

// CreateAssistant asks the backend to ingest a source under an assistant id.
// A 2xx response with a non-success status is returned as a result, not an error.
func (c *Client) CreateAssistant(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Ingest)
	defer cancel()

	body := wireIngestRequest{
		URL:              req.SourceURL,
		ChatbotID:        req.AssistantID,
		ForceReingestion: req.ForceReingestion,
	}

	var resp wireIngestResponse
	if err := c.do(ctx, "create_assistant", http.MethodPost, "/ingestion/ingest", body, &resp); err != nil {
		return nil, err
	}

	result := &CreateResult{
		Status:         strings.ToLower(strings.TrimSpace(resp.Status)),
		AssistantID:    resp.ChatbotID,
		SourceURL:      resp.URL,
		DetectedType:   resp.DetectedType,
		Connector:      resp.ConnectorUsed,
		TotalDocuments: resp.TotalDocuments,
		Message:        resp.Message,
	}
	if resp.Error != nil {
		result.Error = *resp.Error
	}
	if result.Error == "" && resp.Detail != "" {
		result.Error = resp.Detail
	}
	if result.AssistantID == "" && result.Succeeded() {
		result.AssistantID = req.AssistantID
	}
	return result, nil
}

// AnalyzeSource previews how the backend would ingest a URL without ingesting it
func (c *Client) AnalyzeSource(ctx context.Context, sourceURL string) (*Analysis, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	var resp wireAnalyzeResponse
	body := map[string]string{"url": sourceURL}
	if err := c.do(ctx, "analyze_source", http.MethodPost, "/ingestion/analyze", body, &resp); err != nil {
		return nil, err
	}

	a := &Analysis{
		URL:          resp.URL,
		Status:       resp.Status,
		DetectedType: resp.DetectedType,
		Connector:    resp.Connector,
		Title:        resp.Title,
		Description:  resp.Description,
		Error:        resp.Error,
	}
	if resp.Confidence != nil {
		a.Confidence = *resp.Confidence
	}
	if a.URL == "" {
		a.URL = sourceURL
	}
	return a, nil
}

// AssistantStats fetches knowledge-base statistics for one assistant
func (c *Client) AssistantStats(ctx context.Context, id string) (*Stats, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	var resp wireStats
	path := "/ingestion/chatbots/" + url.PathEscape(id) + "/stats"
	err := c.withRetry(ctx, "assistant_stats", func() error {
		resp = wireStats{}
		return c.do(ctx, "assistant_stats", http.MethodGet, path, nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		AssistantID:    resp.ChatbotID,
		CollectionName: resp.VectorDB.CollectionName,
		DocumentCount:  resp.VectorDB.DocumentCount,
		EmbeddingModel: resp.VectorDB.EmbeddingModel,
		RAGEnabled:     resp.RAGEnabled,
		LLM:            resp.LLMService,
		Error:          resp.VectorDB.Error,
	}
	if stats.AssistantID == "" {
		stats.AssistantID = id
	}
	return stats, nil
}

// DeleteAssistant removes an assistant and all of its ingested data
func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	path := "/ingestion/chatbots/" + url.PathEscape(id)
	return c.do(ctx, "delete_assistant", http.MethodDelete, path, nil, nil)
}

// SupportedSources lists the source types the backend can ingest
func (c *Client) SupportedSources(ctx context.Context) (*SupportedSources, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	var resp wireSupportedSources
	err := c.withRetry(ctx, "supported_sources", func() error {
		resp = wireSupportedSources{}
		return c.do(ctx, "supported_sources", http.MethodGet, "/ingestion/supported-sources", nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	return &SupportedSources{
		Connectors:    resp.AvailableConnectors,
		Types:         sortedKeys(resp.SupportedTypes),
		AutoDetection: resp.AutoDetection,
		VersionAware:  resp.VersionAware,
	}, nil
}
