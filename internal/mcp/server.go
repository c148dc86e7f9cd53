// Package mcp provides the stdio MCP server exposing the life log to agents.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/vibelog/internal/buildinfo"
	"github.com/go-ports/vibelog/internal/models"
	"github.com/go-ports/vibelog/internal/service"
)

const logDescription = `Log a life moment to the user's Vibing u feed. The backend classifies the text into a category (sleep, diet, activity, mood, ...) and returns an AI insight. Use this when the user describes something that happened to them, not for questions.`

const feedDescription = `Read the user's recent life-log feed. Pass a query to search cached entries by keyword, or omit it for the latest entries. Results include category, content, AI insight, and tags.`

const chatDescription = `Ask the Vibing u assistant a question about the user's life log. This is a single non-streaming turn; pass conversation_id to continue an existing thread.`

// NewServer creates and registers all vibe tools on a new MCP server.
// It is intentionally separate from Serve so that tests and other callers can
// obtain a fully configured server without committing to the stdio transport.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("vibelog", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve starts the stdio MCP server, blocking until stdin closes.
func Serve(_ context.Context) error {
	svc, err := service.New("")
	if err != nil {
		return fmt.Errorf("mcp: init service: %w", err)
	}
	defer svc.Close()

	return mcpserver.ServeStdio(NewServer(svc))
}

// registerTools wires all three MCP tools into the server.
func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("vibe_log",
		mcp.WithDescription(logDescription),
		mcp.WithString("text",
			mcp.Description("What happened, in the user's words."),
			mcp.Required(),
		),
		mcp.WithString("image",
			mcp.Description("Optional path to an image to attach."),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleLog(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("vibe_feed",
		mcp.WithDescription(feedDescription),
		mcp.WithString("query",
			mcp.Description("Keyword search over cached entries. Omit for the latest feed."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max entries (default 10)"),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleFeed(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("vibe_chat",
		mcp.WithDescription(chatDescription),
		mcp.WithString("message",
			mcp.Description("The question or message for the assistant."),
			mcp.Required(),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Existing conversation to continue. Omit to start a new one."),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleChat(ctx, svc, req)
	})
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleLog(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	image := req.GetString("image", "")

	res, err := svc.Submit(ctx, text, image)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"id":         res.Entry.ID,
		"category":   res.Entry.Category,
		"ai_insight": res.Entry.AIInsight,
		"tags":       stringSlice(res.Entry.Tags),
	})
}

func handleFeed(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	var entries []models.FeedEntry
	fromCache := false
	if query != "" {
		found, err := svc.Search(query, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entries = found
		fromCache = true
	} else {
		recent, cached, err := svc.History(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fromCache = cached
		for _, e := range recent {
			entries = append(entries, *e)
		}
	}

	clean := make([]map[string]any, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		clean = append(clean, map[string]any{
			"id":         e.ID,
			"category":   e.Category,
			"content":    e.RawContent,
			"ai_insight": e.AIInsight,
			"tags":       stringSlice(e.Tags),
			"bookmarked": e.IsBookmarked,
			"time":       e.DisplayTime().Format(time.RFC3339),
		})
	}

	return jsonResult(map[string]any{
		"entries":    clean,
		"from_cache": fromCache,
	})
}

func handleChat(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")
	conversationID := req.GetString("conversation_id", "")

	content, err := svc.Client.SendMessage(ctx, conversationID, message)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"conversation_id": conversationID,
		"content":         content,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// stringSlice normalises nil tag slices so JSON output is always an array.
func stringSlice(s []string) []string {
	if s == nil {
		return make([]string, 0)
	}
	return s
}
