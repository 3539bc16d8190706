// Package testutil provides a fake documentation-assistant backend for tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Route keys accepted by Backend.Hits
const (
	RouteList    = "GET /ingestion/chatbots"
	RouteIngest  = "POST /ingestion/ingest"
	RouteAnalyze = "POST /ingestion/analyze"
	RouteStats   = "GET /ingestion/chatbots/{id}/stats"
	RouteDelete  = "DELETE /ingestion/chatbots/{id}"
	RouteSources = "GET /ingestion/supported-sources"
	RouteChat    = "POST /chat/message"

	RouteTools      = "GET /chat/chatbots/{id}/tools"
	RouteSetTools   = "POST /chat/chatbots/{id}/tools"
	RouteEnable     = "POST /chat/chatbots/{id}/tools/{tool}/enable"
	RouteDisable    = "POST /chat/chatbots/{id}/tools/{tool}/disable"
	RouteToolStatus = "GET /chat/tools/status"
	RouteRetrieval  = "POST /ingestion/chatbots/{id}/test-retrieval"
)

// Tools the fake backend offers every assistant until it is restricted
var Tools = []map[string]any{
	{"name": "get_api_version_info", "description": "Get version information about the API from documentation database"},
	{"name": "search_documentation", "description": "Search the documentation database for relevant information to answer user questions"},
}

// ChatPayload is the body the client sends to /chat/message
type ChatPayload struct {
	Message   string `json:"message"`
	ChatbotID string `json:"chatbot_id"`
	SessionID string `json:"session_id"`
}

// IngestPayload is the body the client sends to /ingestion/ingest
type IngestPayload struct {
	URL              string `json:"url"`
	ChatbotID        string `json:"chatbot_id"`
	ForceReingestion bool   `json:"force_reingestion"`
}

// Responder produces a status code and a JSON-encodable body
type Responder func(body []byte) (int, any)

// Backend is an httptest server speaking the backend's /api/v1 contract.
// Handlers can be swapped at any time; all state is mutex-guarded.
type Backend struct {
	*httptest.Server

	mu         sync.Mutex
	assistants []map[string]any
	listStatus int
	responders map[string]Responder
	hits       map[string]int
	chats      []ChatPayload
	ingests    []IngestPayload
	toolAccess map[string][]string // absent means every tool
	gate       chan struct{}
}

// NewBackend starts a fake backend that is closed when the test ends
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		responders: make(map[string]Responder),
		hits:       make(map[string]int),
		toolAccess: make(map[string][]string),
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ingestion/chatbots", b.handleList)
		r.Post("/ingestion/ingest", b.handle(RouteIngest, b.defaultIngest))
		r.Post("/ingestion/analyze", b.handle(RouteAnalyze, defaultAnalyze))
		r.Get("/ingestion/chatbots/{id}/stats", b.handleWithID(RouteStats, defaultStats))
		r.Delete("/ingestion/chatbots/{id}", b.handleWithID(RouteDelete, defaultDelete))
		r.Get("/ingestion/supported-sources", b.handle(RouteSources, defaultSources))
		r.Post("/chat/message", b.handle(RouteChat, b.defaultChat))
		r.Get("/chat/chatbots/{id}/tools", b.handleRequest(RouteTools, b.defaultTools))
		r.Post("/chat/chatbots/{id}/tools", b.handleRequest(RouteSetTools, b.defaultSetTools))
		r.Post("/chat/chatbots/{id}/tools/{tool}/enable", b.handleRequest(RouteEnable, b.defaultEnable))
		r.Post("/chat/chatbots/{id}/tools/{tool}/disable", b.handleRequest(RouteDisable, b.defaultDisable))
		r.Get("/chat/tools/status", b.handleRequest(RouteToolStatus, b.defaultToolStatus))
		r.Post("/ingestion/chatbots/{id}/test-retrieval", b.handleRequest(RouteRetrieval, defaultRetrieval))
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		b.Release()
		b.Close()
	})
	return b
}

// SetAssistants replaces the list payload items
func (b *Backend) SetAssistants(items ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assistants = items
}

// FailList makes the list route answer with status and a detail payload; 0 restores it
func (b *Backend) FailList(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listStatus = status
}

// On overrides the responder for a route key
func (b *Backend) On(route string, fn Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders[route] = fn
}

// HoldChat makes chat requests block until Release is called
func (b *Backend) HoldChat() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate == nil {
		b.gate = make(chan struct{})
	}
}

// Release unblocks held chat requests
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate != nil {
		close(b.gate)
		b.gate = nil
	}
}

// Hits returns how many requests reached a route
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// Chats returns every chat payload received, in order
func (b *Backend) Chats() []ChatPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChatPayload(nil), b.chats...)
}

// Ingests returns every ingest payload received, in order
func (b *Backend) Ingests() []IngestPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]IngestPayload(nil), b.ingests...)
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.hits[RouteList]++
	status := b.listStatus
	items := b.assistants
	b.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"detail": "vector store unavailable"})
		return
	}
	if items == nil {
		items = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chatbots": items, "total": len(items)})
}

func (b *Backend) handle(route string, fallback Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.hits[route]++
		fn, ok := b.responders[route]
		gate := b.gate
		switch route {
		case RouteChat:
			var p ChatPayload
			_ = json.Unmarshal(body, &p)
			b.chats = append(b.chats, p)
		case RouteIngest:
			var p IngestPayload
			_ = json.Unmarshal(body, &p)
			b.ingests = append(b.ingests, p)
		}
		b.mu.Unlock()

		if route == RouteChat && gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if !ok {
			fn = fallback
		}
		status, resp := fn(body)
		writeJSON(w, status, resp)
	}
}

func (b *Backend) handleWithID(route string, fallback Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[route]++
		fn, ok := b.responders[route]
		b.mu.Unlock()

		if !ok {
			fn = fallback
		}
		status, resp := fn([]byte(chi.URLParam(r, "id")))
		writeJSON(w, status, resp)
	}
}

// handleRequest serves routes whose default needs path or query parameters.
// An override registered with On still receives only the raw body.
func (b *Backend) handleRequest(route string, fallback func(r *http.Request, body []byte) (int, any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.hits[route]++
		fn, ok := b.responders[route]
		b.mu.Unlock()

		var status int
		var resp any
		if ok {
			status, resp = fn(body)
		} else {
			status, resp = fallback(r, body)
		}
		writeJSON(w, status, resp)
	}
}

func knownTool(name string) bool {
	for _, t := range Tools {
		if t["name"] == name {
			return true
		}
	}
	return false
}

// allowedTools must be called with mu held
func (b *Backend) allowedTools(id string) []string {
	if names, ok := b.toolAccess[id]; ok {
		return names
	}
	all := make([]string, 0, len(Tools))
	for _, t := range Tools {
		all = append(all, t["name"].(string))
	}
	return all
}

func (b *Backend) defaultTools(r *http.Request, _ []byte) (int, any) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	allowed := b.allowedTools(id)
	b.mu.Unlock()

	decls := []map[string]any{}
	for _, t := range Tools {
		if slices.Contains(allowed, t["name"].(string)) {
			decls = append(decls, t)
		}
	}
	return http.StatusOK, map[string]any{"chatbot_id": id, "tools_count": len(decls), "tools": decls}
}

func (b *Backend) defaultSetTools(r *http.Request, body []byte) (int, any) {
	id := chi.URLParam(r, "id")
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return http.StatusUnprocessableEntity, map[string]string{"detail": "expected a list of tool names"}
	}
	valid := []string{}
	for _, n := range names {
		if knownTool(n) && !slices.Contains(valid, n) {
			valid = append(valid, n)
		}
	}
	sort.Strings(valid)

	b.mu.Lock()
	b.toolAccess[id] = valid
	b.mu.Unlock()
	return http.StatusOK, map[string]any{"message": "Tools updated for chatbot " + id, "chatbot_id": id, "tools": names}
}

func (b *Backend) defaultEnable(r *http.Request, _ []byte) (int, any) {
	id, tool := chi.URLParam(r, "id"), chi.URLParam(r, "tool")
	if !knownTool(tool) {
		return http.StatusNotFound, map[string]string{"detail": "Tool " + tool + " not found"}
	}

	b.mu.Lock()
	allowed := b.allowedTools(id)
	if !slices.Contains(allowed, tool) {
		allowed = append(slices.Clone(allowed), tool)
		sort.Strings(allowed)
	}
	b.toolAccess[id] = allowed
	b.mu.Unlock()
	return http.StatusOK, map[string]any{"chatbot_id": id, "tool_name": tool, "enabled": true}
}

func (b *Backend) defaultDisable(r *http.Request, _ []byte) (int, any) {
	id, tool := chi.URLParam(r, "id"), chi.URLParam(r, "tool")

	b.mu.Lock()
	kept := []string{}
	for _, n := range b.allowedTools(id) {
		if n != tool {
			kept = append(kept, n)
		}
	}
	b.toolAccess[id] = kept
	b.mu.Unlock()
	return http.StatusOK, map[string]any{"chatbot_id": id, "tool_name": tool, "enabled": false}
}

func (b *Backend) defaultToolStatus(*http.Request, []byte) (int, any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := make(map[string][]string, len(b.toolAccess))
	for id, names := range b.toolAccess {
		status[id] = slices.Clone(names)
	}
	return http.StatusOK, map[string]any{"tool_status": status, "chatbot_count": len(status)}
}

func defaultRetrieval(r *http.Request, _ []byte) (int, any) {
	query := r.URL.Query().Get("query")
	if query == "" {
		return http.StatusUnprocessableEntity, map[string]string{"detail": "query is required"}
	}
	return http.StatusOK, map[string]any{
		"query":         query,
		"results_count": 2,
		"results": []map[string]any{
			{
				"content":          "GET /pets returns every pet in the store.",
				"metadata":         map[string]any{"title": "List pets", "source_url": "https://petstore.example/docs#list"},
				"similarity_score": 0.912,
				"rank":             1,
			},
			{
				"content":          "POST /pets adds a pet.",
				"metadata":         map[string]any{"title": "Add pet"},
				"similarity_score": 0.418,
				"rank":             2,
			},
		},
	}
}

func (b *Backend) defaultChat(body []byte) (int, any) {
	var p ChatPayload
	_ = json.Unmarshal(body, &p)
	return http.StatusOK, map[string]any{
		"message":    "You said: " + p.Message,
		"session_id": p.SessionID,
		"sources": []map[string]any{
			{"title": "Pets API", "url": "https://petstore.example/docs", "similarity": 0.87},
		},
	}
}

func (b *Backend) defaultIngest(body []byte) (int, any) {
	var p IngestPayload
	_ = json.Unmarshal(body, &p)
	return http.StatusOK, map[string]any{
		"chatbot_id":      p.ChatbotID,
		"url":             p.URL,
		"status":          "success",
		"detected_type":   "openapi",
		"connector_used":  "swagger",
		"total_documents": 12,
		"error":           nil,
		"message":         "Ingested 12 documents",
	}
}

func defaultAnalyze(body []byte) (int, any) {
	var p struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(body, &p)
	return http.StatusOK, map[string]any{
		"url":           p.URL,
		"status":        "supported",
		"detected_type": "openapi",
		"confidence":    0.92,
		"connector":     "swagger",
		"title":         "Petstore",
	}
}

func defaultStats(id []byte) (int, any) {
	return http.StatusOK, map[string]any{
		"chatbot_id": string(id),
		"vector_db": map[string]any{
			"chatbot_id":      string(id),
			"collection_name": "chatbot-" + string(id),
			"document_count":  12,
			"embedding_model": "all-MiniLM-L6-v2",
		},
		"llm_service": map[string]any{"model": "gemini-1.5-flash"},
		"rag_enabled": true,
	}
}

func defaultDelete(id []byte) (int, any) {
	return http.StatusOK, map[string]any{"message": "Chatbot " + string(id) + " deleted successfully"}
}

func defaultSources([]byte) (int, any) {
	return http.StatusOK, map[string]any{
		"total_connectors":     1,
		"available_connectors": []string{"swagger"},
		"supported_types": map[string]any{
			"openapi": map[string]any{"connector": "swagger"},
			"swagger": map[string]any{"connector": "swagger"},
		},
		"auto_detection": true,
		"version_aware":  true,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
