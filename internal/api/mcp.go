package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/quilldocs/quill/internal/retrieval"
)

// Searcher abstracts raw passage retrieval for the MCP layer.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ScoredRecord, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline Pipeline
	Searcher Searcher
	Version  string
}

// NewMCPServer creates an MCP server exposing the document Q&A tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"quill",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("quill: local document knowledge base. Upload documents over HTTP, then ask grounded questions here."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_documents",
			mcp.WithDescription("Ask a question about the uploaded documents and get a grounded answer with source citations and a confidence level."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("search_passages",
			mcp.WithDescription("Semantically search the indexed document passages and return raw matches with similarity scores, without answer generation."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchPassages(deps),
	)

	s.AddTool(
		mcp.NewTool("knowledge_stats",
			mcp.WithDescription("Report how many passages are currently indexed."),
		),
		mcpKnowledgeStats(deps),
	)

	return s
}

func mcpAskDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		ans, err := deps.Pipeline.Query(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		out, err := json.Marshal(ans)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode answer: %v", err)), nil
		}
		return mcpText(string(out)), nil
	}
}

func mcpSearchPassages(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		results, err := deps.Searcher.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		type passage struct {
			ID       string  `json:"id"`
			Source   string  `json:"source"`
			Sequence int     `json:"sequence"`
			Text     string  `json:"text"`
			Score    float32 `json:"score"`
		}
		out := make([]passage, len(results))
		for i, r := range results {
			out[i] = passage{
				ID:       r.ID,
				Source:   r.SourceName,
				Sequence: r.Sequence,
				Text:     r.Text,
				Score:    r.Score,
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpKnowledgeStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := deps.Pipeline.Stats(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		b, err := json.Marshal(stats)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
