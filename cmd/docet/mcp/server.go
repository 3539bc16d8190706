package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/internal/core/provision"
	"github.com/docet-dev/docet/internal/core/session"
	"github.com/docet-dev/docet/pkg/logger"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Backend is the gateway surface the tools use. Satisfied by *gateway.Client.
type Backend interface {
	provision.Gateway
	session.Gateway
	AssistantTools(ctx context.Context, id string) (*gateway.ToolSet, error)
	TestRetrieval(ctx context.Context, id, query string) (*gateway.Retrieval, error)
}

// Deps are the shared components every tool handler uses
type Deps struct {
	Backend         Backend
	Ledger          provision.Ledger // may be nil
	WelcomeTemplate string
	FallbackReply   string
	Logger          *logger.Logger
}

// ListAssistantsArgs defines arguments for the list_assistants tool
type ListAssistantsArgs struct {
	Filter string `json:"filter,omitempty" jsonschema:"description=Filter tokens: words match the id; source:<text>; after:<date>; docs:<n>"`
}

// AskAssistantArgs defines arguments for the ask_assistant tool
type AskAssistantArgs struct {
	AssistantID string `json:"assistant_id" jsonschema:"description=Assistant to ask,required"`
	Message     string `json:"message" jsonschema:"description=Question to send,required"`
}

// CreateAssistantArgs defines arguments for the create_assistant tool
type CreateAssistantArgs struct {
	SourceURL   string `json:"source_url" jsonschema:"description=Documentation source URL,required"`
	AssistantID string `json:"assistant_id,omitempty" jsonschema:"description=Assistant id (generated when omitted)"`
}

// AnalyzeSourceArgs defines arguments for the analyze_source tool
type AnalyzeSourceArgs struct {
	URL string `json:"url" jsonschema:"description=Documentation source URL,required"`
}

// SearchDocumentsArgs defines arguments for the search_documents tool
type SearchDocumentsArgs struct {
	AssistantID string `json:"assistant_id" jsonschema:"description=Assistant whose documents to search,required"`
	Query       string `json:"query" jsonschema:"description=Search text,required"`
}

// AssistantToolsArgs defines arguments for the assistant_tools tool
type AssistantToolsArgs struct {
	AssistantID string `json:"assistant_id" jsonschema:"description=Assistant to inspect,required"`
}

// DocumentMatch is one ranked chunk in a search_documents payload
type DocumentMatch struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Percent int    `json:"similarity_percent"`
	Content string `json:"content"`
}

// AskResult is the ask_assistant payload
type AskResult struct {
	AssistantID string                   `json:"assistant_id"`
	Reply       string                   `json:"reply"`
	Sources     []models.SourceReference `json:"sources"`
	Error       string                   `json:"error,omitempty"`
}

// CreateResult is the create_assistant payload
type CreateResult struct {
	AssistantID string `json:"assistant_id"`
	SourceURL   string `json:"source_url"`
}

// NewServer builds the MCP server with every docet tool registered
func NewServer(d Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Docet",
		version,
	)

	listTool := mcp.NewTool("list_assistants",
		mcp.WithDescription("List the documentation assistants the backend knows, with their source URL, document count and last update"),
		mcp.WithString("filter",
			mcp.Description("Optional filter: words match the assistant id; 'source:<text>', 'after:<date>' (e.g. after:yesterday) and 'docs:<n>' narrow further")),
	)
	s.AddTool(listTool, makeListAssistantsHandler(d))

	askTool := mcp.NewTool("ask_assistant",
		mcp.WithDescription("Ask a documentation assistant one question. Returns the reply text and the source documents it was grounded on."),
		mcp.WithString("assistant_id",
			mcp.Required(),
			mcp.Description("Assistant to ask (see list_assistants)")),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Question to send")),
	)
	s.AddTool(askTool, makeAskAssistantHandler(d))

	createTool := mcp.NewTool("create_assistant",
		mcp.WithDescription("Create (or re-ingest) an assistant from a documentation source such as an OpenAPI spec or docs site. Can take several minutes."),
		mcp.WithString("source_url",
			mcp.Required(),
			mcp.Description("Documentation source URL")),
		mcp.WithString("assistant_id",
			mcp.Description("Assistant id; a docs-... id is generated when omitted")),
	)
	s.AddTool(createTool, makeCreateAssistantHandler(d))

	analyzeTool := mcp.NewTool("analyze_source",
		mcp.WithDescription("Check what the backend detects at a URL and whether it can be ingested, without creating anything"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Documentation source URL")),
	)
	s.AddTool(analyzeTool, makeAnalyzeSourceHandler(d))

	searchTool := mcp.NewTool("search_documents",
		mcp.WithDescription("Search an assistant's ingested documentation directly, without generating an answer. Returns ranked chunks with similarity percentages."),
		mcp.WithString("assistant_id",
			mcp.Required(),
			mcp.Description("Assistant whose documents to search")),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text")),
	)
	s.AddTool(searchTool, makeSearchDocumentsHandler(d))

	toolsTool := mcp.NewTool("assistant_tools",
		mcp.WithDescription("List the tools an assistant's model may call while answering"),
		mcp.WithString("assistant_id",
			mcp.Required(),
			mcp.Description("Assistant to inspect")),
	)
	s.AddTool(toolsTool, makeAssistantToolsHandler(d))

	return s
}

// StartServer serves the tools over stdio until the client disconnects
func StartServer(d Deps, version string) error {
	return server.ServeStdio(NewServer(d, version))
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func decodeArgs(request mcp.CallToolRequest, dst any) error {
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	return json.Unmarshal(argsBytes, dst)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (d Deps) workflow() *provision.Workflow {
	return provision.New(d.Backend, provision.Options{Ledger: d.Ledger, Logger: d.Logger})
}

func makeListAssistantsHandler(d Deps) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListAssistantsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		listing := d.workflow().Refresh(ctx)
		if listing.Status == provision.ListFailed {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list assistants: %s", listing.Reason)), nil
		}

		assistants := provision.ParseFilter(args.Filter, timeNow()).Apply(listing.Assistants)
		return jsonResult(map[string]interface{}{
			"assistants": assistants,
		})
	}
}

func makeAskAssistantHandler(d Deps) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AskAssistantArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		args.AssistantID = strings.TrimSpace(args.AssistantID)
		if args.AssistantID == "" || strings.TrimSpace(args.Message) == "" {
			return mcp.NewToolResultError("assistant_id and message are required"), nil
		}

		ctrl := session.New(d.Backend, args.AssistantID, session.Options{
			WelcomeTemplate: d.WelcomeTemplate,
			FallbackReply:   d.FallbackReply,
			Logger:          d.Logger,
		})
		if ctrl.Validate(ctx) == session.PhaseNotFound {
			return mcp.NewToolResultError(fmt.Sprintf("assistant %q not found", args.AssistantID)), nil
		}

		reply, _ := ctrl.Send(ctx, args.Message)
		result := AskResult{
			AssistantID: args.AssistantID,
			Reply:       reply.Content,
			Sources:     reply.Sources,
			Error:       ctrl.Snapshot().LastError,
		}
		if result.Sources == nil {
			result.Sources = []models.SourceReference{}
		}
		return jsonResult(result)
	}
}

func makeCreateAssistantHandler(d Deps) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args CreateAssistantArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		wf := d.workflow()
		wf.OpenForm()
		wf.SetSourceURL(args.SourceURL)
		if args.AssistantID != "" {
			wf.SetAssistantID(args.AssistantID)
		}

		id, err := wf.Submit(ctx)
		if err != nil {
			logger.OrNop(d.Logger).Warn("mcp create_assistant failed", zap.Error(err))
			msg := provision.FailureMessage(err)
			if f, ok := wf.Form(); ok && f.Error != "" {
				msg = f.Error
			}
			return mcp.NewToolResultError(msg), nil
		}
		return jsonResult(CreateResult{AssistantID: id, SourceURL: strings.TrimSpace(args.SourceURL)})
	}
}

func makeAnalyzeSourceHandler(d Deps) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AnalyzeSourceArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if strings.TrimSpace(args.URL) == "" {
			return mcp.NewToolResultError("url is required"), nil
		}

		res, err := d.Backend.AnalyzeSource(ctx, strings.TrimSpace(args.URL))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze failed: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{
			"url":           res.URL,
			"status":        res.Status,
			"supported":     res.Supported(),
			"detected_type": res.DetectedType,
			"confidence":    res.Confidence,
			"connector":     res.Connector,
			"title":         res.Title,
			"description":   res.Description,
			"error":         res.Error,
		})
	}
}

func makeSearchDocumentsHandler(d Deps) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchDocumentsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		args.AssistantID = strings.TrimSpace(args.AssistantID)
		args.Query = strings.TrimSpace(args.Query)
		if args.AssistantID == "" || args.Query == "" {
			return mcp.NewToolResultError("assistant_id and query are required"), nil
		}

		r, err := d.Backend.TestRetrieval(ctx, args.AssistantID, args.Query)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		matches := make([]DocumentMatch, 0, len(r.Chunks))
		for _, c := range r.Chunks {
			matches = append(matches, DocumentMatch{
				Rank:    c.Rank,
				Title:   c.Source.Title,
				URL:     c.Source.URL,
				Percent: c.Source.Percent(),
				Content: c.Content,
			})
		}
		return jsonResult(map[string]interface{}{
			"assistant_id": args.AssistantID,
			"query":        r.Query,
			"matches":      matches,
		})
	}
}

func makeAssistantToolsHandler(d Deps) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AssistantToolsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		args.AssistantID = strings.TrimSpace(args.AssistantID)
		if args.AssistantID == "" {
			return mcp.NewToolResultError("assistant_id is required"), nil
		}

		set, err := d.Backend.AssistantTools(ctx, args.AssistantID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to fetch tools: %v", err)), nil
		}
		tools := make([]map[string]string, 0, len(set.Tools))
		for _, t := range set.Tools {
			tools = append(tools, map[string]string{"name": t.Name, "description": t.Description})
		}
		return jsonResult(map[string]interface{}{
			"assistant_id": set.AssistantID,
			"tools":        tools,
		})
	}
}

var timeNow = time.Now

var _ Backend = (*gateway.Client)(nil)
