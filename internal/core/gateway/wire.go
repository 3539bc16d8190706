package gateway

import (
	"sort"
	"strings"

	"github.com/docet-dev/docet/internal/core/models"
)

const untitledSource = "Untitled"

type wireChatbot struct {
	ChatbotID      string `json:"chatbot_id"`
	CollectionName string `json:"collection_name"`
	SourceURL      string `json:"source_url"`
	DocumentCount  int    `json:"document_count"`
	ChunkCount     int    `json:"chunk_count"`
	LastUpdated    string `json:"last_updated"`
}

type wireChatbotList struct {
	Chatbots []wireChatbot `json:"chatbots"`
	Total    int           `json:"total"`
}

func (w wireChatbot) summary() models.AssistantSummary {
	id := w.ChatbotID
	if id == "" || id == models.Unknown {
		id = strings.TrimPrefix(w.CollectionName, "chatbot-")
	}
	lastUpdated := w.LastUpdated
	if lastUpdated == "" {
		lastUpdated = models.Unknown
	}
	return models.AssistantSummary{
		AssistantID:   id,
		SourceURL:     w.SourceURL,
		DocumentCount: max(w.DocumentCount, 0),
		ChunkCount:    max(w.ChunkCount, 0),
		LastUpdated:   lastUpdated,
	}
}

type wireSource struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Score      *float64 `json:"score"`
	Similarity *float64 `json:"similarity"`
}

func (w wireSource) reference() models.SourceReference {
	title := strings.TrimSpace(w.Title)
	if title == "" {
		title = untitledSource
	}
	var score float64
	switch {
	case w.Score != nil:
		score = *w.Score
	case w.Similarity != nil:
		score = *w.Similarity
	}
	return models.SourceReference{
		Title: title,
		URL:   w.URL,
		Score: min(max(score, 0), 1),
	}
}

func references(in []wireSource) []models.SourceReference {
	out := make([]models.SourceReference, 0, len(in))
	for _, s := range in {
		out = append(out, s.reference())
	}
	return out
}

type wireIngestRequest struct {
	URL              string `json:"url"`
	ChatbotID        string `json:"chatbot_id"`
	ForceReingestion bool   `json:"force_reingestion"`
}

type wireIngestResponse struct {
	ChatbotID      string  `json:"chatbot_id"`
	URL            string  `json:"url"`
	Status         string  `json:"status"`
	DetectedType   string  `json:"detected_type"`
	ConnectorUsed  string  `json:"connector_used"`
	TotalDocuments int     `json:"total_documents"`
	Error          *string `json:"error"`
	Message        string  `json:"message"`
	Detail         string  `json:"detail"`
}

type wireChatRequest struct {
	Message   string `json:"message"`
	ChatbotID string `json:"chatbot_id"`
	SessionID string `json:"session_id"`
}

type wireChatResponse struct {
	Message   string       `json:"message"`
	SessionID string       `json:"session_id"`
	Sources   []wireSource `json:"sources"`
}

type wireAnalyzeResponse struct {
	URL          string   `json:"url"`
	Status       string   `json:"status"`
	DetectedType string   `json:"detected_type"`
	Confidence   *float64 `json:"confidence"`
	Connector    string   `json:"connector"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Error        string   `json:"error"`
}

type wireStats struct {
	ChatbotID string `json:"chatbot_id"`
	VectorDB  struct {
		CollectionName string `json:"collection_name"`
		DocumentCount  int    `json:"document_count"`
		EmbeddingModel string `json:"embedding_model"`
		Error          string `json:"error"`
	} `json:"vector_db"`
	LLMService map[string]any `json:"llm_service"`
	RAGEnabled bool           `json:"rag_enabled"`
}

type wireSupportedSources struct {
	TotalConnectors     int                       `json:"total_connectors"`
	AvailableConnectors []string                  `json:"available_connectors"`
	SupportedTypes      map[string]map[string]any `json:"supported_types"`
	AutoDetection       bool                      `json:"auto_detection"`
	VersionAware        bool                      `json:"version_aware"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
