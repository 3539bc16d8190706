package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/docet-dev/docet/internal/core/models"
)

// Tool is a function the backend's model may call while answering
type Tool struct {
	Name        string
	Description string
}

// ToolSet is the tools one assistant may use
type ToolSet struct {
	AssistantID string
	Tools       []Tool
}

// Names returns the tool names in backend order
func (t *ToolSet) Names() []string {
	names := make([]string, len(t.Tools))
	for i, tool := range t.Tools {
		names[i] = tool.Name
	}
	return names
}

// Chunk is one document fragment a retrieval returned
type Chunk struct {
	Rank    int
	Content string
	Source  models.SourceReference
}

// Retrieval is what the backend would ground an answer on, without generating one
type Retrieval struct {
	Query  string
	Chunks []Chunk
}

func toolsPath(id string) string {
	return "/chat/chatbots/" + url.PathEscape(id) + "/tools"
}

// AssistantTools lists the tools an assistant may call. Assistants that were
// never restricted get every tool the backend has.
func (c *Client) AssistantTools(ctx context.Context, id string) (*ToolSet, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	var resp wireToolList
	err := c.withRetry(ctx, "assistant_tools", func() error {
		resp = wireToolList{}
		return c.do(ctx, "assistant_tools", http.MethodGet, toolsPath(id), nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	set := &ToolSet{AssistantID: resp.ChatbotID, Tools: make([]Tool, 0, len(resp.Tools))}
	if set.AssistantID == "" {
		set.AssistantID = id
	}
	for _, t := range resp.Tools {
		if t.Name == "" {
			continue
		}
		set.Tools = append(set.Tools, Tool{Name: t.Name, Description: t.Description})
	}
	return set, nil
}

// SetAssistantTools restricts an assistant to exactly the named tools. The
// backend silently ignores names it does not know.
func (c *Client) SetAssistantTools(ctx context.Context, id string, names []string) error {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	if names == nil {
		names = []string{}
	}
	return c.do(ctx, "set_assistant_tools", http.MethodPost, toolsPath(id), names, nil)
}

// SetToolEnabled grants or revokes one tool. Enabling an unknown tool fails
// with ErrNotFound.
func (c *Client) SetToolEnabled(ctx context.Context, id, tool string, enabled bool) error {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	action := "disable"
	if enabled {
		action = "enable"
	}
	path := toolsPath(id) + "/" + url.PathEscape(tool) + "/" + action
	return c.do(ctx, action+"_tool", http.MethodPost, path, nil, nil)
}

// ToolStatus returns the tool names of every assistant with an explicit tool
// restriction. Assistants absent from the map use every tool.
func (c *Client) ToolStatus(ctx context.Context) (map[string][]string, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	var resp wireToolStatus
	err := c.withRetry(ctx, "tool_status", func() error {
		resp = wireToolStatus{}
		return c.do(ctx, "tool_status", http.MethodGet, "/chat/tools/status", nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	status := make(map[string][]string, len(resp.ToolStatus))
	for id, names := range resp.ToolStatus {
		sorted := append([]string(nil), names...)
		sort.Strings(sorted)
		status[id] = sorted
	}
	return status, nil
}

// TestRetrieval runs the assistant's document search for query and returns the
// ranked chunks it found
func (c *Client) TestRetrieval(ctx context.Context, id, query string) (*Retrieval, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Request)
	defer cancel()

	path := "/ingestion/chatbots/" + url.PathEscape(id) + "/test-retrieval?" +
		url.Values{"query": {query}}.Encode()

	var resp wireRetrieval
	if err := c.do(ctx, "test_retrieval", http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}

	r := &Retrieval{Query: resp.Query, Chunks: make([]Chunk, 0, len(resp.Results))}
	if r.Query == "" {
		r.Query = query
	}
	for i, w := range resp.Results {
		r.Chunks = append(r.Chunks, w.chunk(i+1))
	}
	sort.SliceStable(r.Chunks, func(i, j int) bool { return r.Chunks[i].Rank < r.Chunks[j].Rank })
	return r, nil
}

type wireTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type wireToolList struct {
	ChatbotID  string     `json:"chatbot_id"`
	ToolsCount int        `json:"tools_count"`
	Tools      []wireTool `json:"tools"`
}

type wireToolStatus struct {
	ToolStatus   map[string][]string `json:"tool_status"`
	ChatbotCount int                 `json:"chatbot_count"`
}

type wireRetrieval struct {
	Query        string      `json:"query"`
	ResultsCount int         `json:"results_count"`
	Results      []wireChunk `json:"results"`
}

type wireChunk struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore *float64       `json:"similarity_score"`
	Rank            int            `json:"rank"`
}

// chunk maps a search hit; position is used when the backend sent no rank
func (w wireChunk) chunk(position int) Chunk {
	src := wireSource{Similarity: w.SimilarityScore}
	if title, ok := w.Metadata["title"].(string); ok {
		src.Title = title
	}
	if u, ok := w.Metadata["source_url"].(string); ok {
		src.URL = u
	}
	rank := w.Rank
	if rank <= 0 {
		rank = position
	}
	return Chunk{
		Rank:    rank,
		Content: strings.TrimSpace(w.Content),
		Source:  src.reference(),
	}
}
