// Package mcp exposes the honeypot's analysis primitives as MCP tools so
// operator tooling can classify text, run extraction, and inspect session
// evidence without going through the HTTP surface.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/scamtrap/internal/classify"
	"github.com/hazyhaar/scamtrap/internal/extract"
	"github.com/hazyhaar/scamtrap/internal/intel"
)

// NewServer creates an MCPServer with the scamtrap tools registered.
func NewServer(store intel.Store, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"scamtrap",
		version,
		server.WithToolCapabilities(true),
	)

	registerClassify(srv)
	registerExtract(srv)
	registerGetSession(srv, store)
	registerListSessions(srv, store)

	return srv
}

// ServeStdio runs the tool server over stdio until the client disconnects.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

func registerClassify(srv *server.MCPServer) {
	tool := mcp.NewTool("classify_message",
		mcp.WithDescription("Run the deterministic scam classifier on a message and return verdict, confidence and matched tactics"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The message text to classify")),
	)
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res := classify.Heuristic(intel.Message{Sender: intel.SenderScammer, Text: text}, nil)
		return jsonResult(res)
	})
}

func registerExtract(srv *server.MCPServer) {
	tool := mcp.NewTool("extract_intelligence",
		mcp.WithDescription("Extract scam intelligence artifacts (links, payment handles, phones, account tokens, keywords) from text"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The scammer-authored text to scan")),
	)
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(extract.FromText(text))
	})
}

func registerGetSession(srv *server.MCPServer, store intel.Store) {
	tool := mcp.NewTool("get_session",
		mcp.WithDescription("Return the accumulated evidence record for one conversation session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session identifier")),
	)
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, ok, err := store.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return mcp.NewToolResultError("session not found: " + id), nil
		}
		return jsonResult(rec)
	})
}

func registerListSessions(srv *server.MCPServer, store intel.Store) {
	tool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List all tracked conversation sessions with their evidence summaries"),
	)
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := store.List()
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]any{"sessions": records, "count": len(records)})
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
