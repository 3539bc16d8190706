package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/docet-dev/docet/internal/core/db"
	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/testutil"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeps(t *testing.T, b *testutil.Backend) Deps {
	t.Helper()
	ledger, err := db.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	return Deps{
		Backend:       gateway.New(b.URL, gateway.WithRetry(gateway.NoRetry())),
		Ledger:        ledger,
		FallbackReply: "fallback",
	}
}

func call(t *testing.T, h toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestListAssistantsTool(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetAssistants(
		map[string]any{"chatbot_id": "petstore", "document_count": 12},
		map[string]any{"chatbot_id": "stripe", "document_count": 300},
	)
	d := newDeps(t, b)

	res := call(t, makeListAssistantsHandler(d), map[string]any{"filter": "pet"})
	require.False(t, res.IsError)

	var out struct {
		Assistants []struct {
			AssistantID string `json:"assistant_id"`
			LastUpdated string `json:"last_updated"`
		} `json:"assistants"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	require.Len(t, out.Assistants, 1)
	assert.Equal(t, "petstore", out.Assistants[0].AssistantID)
	assert.Equal(t, "unknown", out.Assistants[0].LastUpdated)
}

func TestListAssistantsTool_BackendDown(t *testing.T) {
	b := testutil.NewBackend(t)
	b.FailList(http.StatusServiceUnavailable)

	res := call(t, makeListAssistantsHandler(newDeps(t, b)), nil)
	assert.True(t, res.IsError)
}

func TestAskAssistantTool(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetAssistants(map[string]any{"chatbot_id": "petstore"})
	d := newDeps(t, b)

	res := call(t, makeAskAssistantHandler(d), map[string]any{
		"assistant_id": "petstore",
		"message":      "  how do I add a pet?  ",
	})
	require.False(t, res.IsError)

	var out AskResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "You said:   how do I add a pet?  ", out.Reply)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "Pets API", out.Sources[0].Title)
	assert.Equal(t, 87, out.Sources[0].Percent())
	assert.Empty(t, out.Error)

	chats := b.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "petstore", chats[0].ChatbotID)
}

func TestAskAssistantTool_NotFound(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetAssistants(map[string]any{"chatbot_id": "other"})

	res := call(t, makeAskAssistantHandler(newDeps(t, b)), map[string]any{
		"assistant_id": "petstore",
		"message":      "hi",
	})
	assert.True(t, res.IsError)
	assert.Equal(t, 0, b.Hits(testutil.RouteChat))
}

func TestAskAssistantTool_SendFailureReturnsFallback(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetAssistants(map[string]any{"chatbot_id": "petstore"})
	b.On(testutil.RouteChat, func([]byte) (int, any) {
		return http.StatusInternalServerError, map[string]string{"detail": "llm offline"}
	})

	res := call(t, makeAskAssistantHandler(newDeps(t, b)), map[string]any{
		"assistant_id": "petstore",
		"message":      "hi",
	})
	require.False(t, res.IsError)

	var out AskResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "fallback", out.Reply)
	assert.Empty(t, out.Sources)
	assert.Contains(t, out.Error, "llm offline")
}

func TestCreateAssistantTool(t *testing.T) {
	b := testutil.NewBackend(t)
	d := newDeps(t, b)

	res := call(t, makeCreateAssistantHandler(d), map[string]any{
		"source_url":   "https://petstore.swagger.io/v2/swagger.json",
		"assistant_id": "petstore",
	})
	require.False(t, res.IsError, text(t, res))

	var out CreateResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "petstore", out.AssistantID)

	ingests := b.Ingests()
	require.Len(t, ingests, 1)
	assert.True(t, ingests[0].ForceReingestion)

	rows, err := d.Ledger.ListAssistants()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "petstore", rows[0].AssistantID)
}

func TestCreateAssistantTool_MissingURL(t *testing.T) {
	b := testutil.NewBackend(t)

	res := call(t, makeCreateAssistantHandler(newDeps(t, b)), map[string]any{"assistant_id": "petstore"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Source URL is required", text(t, res))
	assert.Equal(t, 0, b.Hits(testutil.RouteIngest))
}

func TestAnalyzeSourceTool(t *testing.T) {
	b := testutil.NewBackend(t)

	res := call(t, makeAnalyzeSourceHandler(newDeps(t, b)), map[string]any{"url": "https://petstore.example/openapi.json"})
	require.False(t, res.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, true, out["supported"])
	assert.Equal(t, "openapi", out["detected_type"])
}

func TestNewServerRegistersTools(t *testing.T) {
	b := testutil.NewBackend(t)
	s := NewServer(newDeps(t, b), "test")
	assert.NotNil(t, s)
}

func TestSearchDocumentsTool(t *testing.T) {
	b := testutil.NewBackend(t)

	res := call(t, makeSearchDocumentsHandler(newDeps(t, b)), map[string]any{
		"assistant_id": "petstore",
		"query":        " list pets ",
	})
	require.False(t, res.IsError)

	var out struct {
		Query   string          `json:"query"`
		Matches []DocumentMatch `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "list pets", out.Query)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, DocumentMatch{
		Rank: 1, Title: "List pets", URL: "https://petstore.example/docs#list",
		Percent: 91, Content: "GET /pets returns every pet in the store.",
	}, out.Matches[0])
	assert.Equal(t, 1, b.Hits(testutil.RouteRetrieval))
}

func TestSearchDocumentsTool_MissingQuery(t *testing.T) {
	b := testutil.NewBackend(t)

	res := call(t, makeSearchDocumentsHandler(newDeps(t, b)), map[string]any{"assistant_id": "petstore"})
	assert.True(t, res.IsError)
	assert.Equal(t, 0, b.Hits(testutil.RouteRetrieval))
}

func TestAssistantToolsTool(t *testing.T) {
	b := testutil.NewBackend(t)
	d := newDeps(t, b)
	require.NoError(t, d.Backend.(*gateway.Client).SetAssistantTools(context.Background(), "petstore", []string{"search_documentation"}))

	res := call(t, makeAssistantToolsHandler(d), map[string]any{"assistant_id": "petstore"})
	require.False(t, res.IsError)

	var out struct {
		AssistantID string `json:"assistant_id"`
		Tools       []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "petstore", out.AssistantID)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "search_documentation", out.Tools[0].Name)
}
