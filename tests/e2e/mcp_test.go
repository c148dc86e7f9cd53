// MCP server end-to-end tests.
//
// Each test wires the real MCP server in-process via the mcp-go
// InProcessTransport, backed by a fresh service.Service rooted at a
// temporary directory and pointed at the fake backend. No binary needs to
// be compiled; the full stack (service → cache → api → mcp handler →
// mcp-go server → in-process client) is exercised within a single test
// process.
package e2e_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-ports/vibelog/internal/checkers"
	internalmcp "github.com/go-ports/vibelog/internal/mcp"
	"github.com/go-ports/vibelog/internal/service"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newMCPClient creates an in-process MCP client backed by a fresh service
// rooted at c.TB.TempDir() and configured against baseURL. The client is
// started and initialized before it is returned; cleanup is registered on c
// automatically.
func newMCPClient(c *qt.C, baseURL string) *mcpclient.Client {
	c.TB.Helper()

	home := c.TB.TempDir()
	cfg := fmt.Sprintf("api:\n  base_url: %s\n", baseURL)
	err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o600)
	c.Assert(err, qt.IsNil)

	svc, err := service.New(home)
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = svc.Close() })

	cl, err := mcpclient.NewInProcessClient(internalmcp.NewServer(svc))
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = cl.Close() })

	c.Assert(cl.Start(context.Background()), qt.IsNil)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "e2e-test", Version: "0.0.1"}
	_, err = cl.Initialize(context.Background(), initReq)
	c.Assert(err, qt.IsNil)

	return cl
}

// callTool invokes the named MCP tool and returns the text of the first
// content item. All errors are surfaced as immediate assertion failures via c.
func callTool(c *qt.C, cl *mcpclient.Client, name string, args map[string]any) string {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Content, qt.HasLen, 1)

	tc, ok := mcp.AsTextContent(result.Content[0])
	c.Assert(ok, qt.IsTrue)

	return tc.Text
}

// callToolError invokes the named MCP tool expecting a tool-level error
// result, returning its text.
func callToolError(c *qt.C, cl *mcpclient.Client, name string, args map[string]any) string {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(result.IsError, qt.IsTrue)
	c.Assert(result.Content, qt.HasLen, 1)

	tc, ok := mcp.AsTextContent(result.Content[0])
	c.Assert(ok, qt.IsTrue)

	return tc.Text
}

// ---------------------------------------------------------------------------
// ListTools
// ---------------------------------------------------------------------------

func TestMCPListTools_HappyPath(t *testing.T) {
	c := qt.New(t)
	b := newBackend(t)
	cl := newMCPClient(c, b.url())

	result, err := cl.ListTools(context.Background(), mcp.ListToolsRequest{})
	c.Assert(err, qt.IsNil)
	c.Assert(result.Tools, qt.HasLen, 3)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	c.Assert(names, qt.Contains, "vibe_log")
	c.Assert(names, qt.Contains, "vibe_feed")
	c.Assert(names, qt.Contains, "vibe_chat")
}

// ---------------------------------------------------------------------------
// vibe_log
// ---------------------------------------------------------------------------

func TestMCPVibeLog_HappyPath(t *testing.T) {
	c := qt.New(t)
	b := newBackend(t)
	cl := newMCPClient(c, b.url())

	text := callTool(c, cl, "vibe_log", map[string]any{
		"text": "Slept a solid eight hours",
	})

	c.Assert(text, checkers.JSONPathEquals("$.id"), "r1")
	c.Assert(text, checkers.JSONPathEquals("$.category"), "SLEEP")
	c.Assert(text, checkers.JSONPathEquals("$.ai_insight"), "Your rest pattern looks steady.")
}

func TestMCPVibeLog_EmptyTextRejected(t *testing.T) {
	c := qt.New(t)
	b := newBackend(t)
	cl := newMCPClient(c, b.url())

	text := callToolError(c, cl, "vibe_log", map[string]any{"text": "   "})
	c.Assert(text, qt.Contains, "nothing to submit")
}

// ---------------------------------------------------------------------------
// vibe_feed
// ---------------------------------------------------------------------------

func TestMCPVibeFeed_HappyPath(t *testing.T) {
	c := qt.New(t)
	b := newBackend(t)
	cl := newMCPClient(c, b.url())

	callTool(c, cl, "vibe_log", map[string]any{"text": "Slept a solid eight hours"})
	callTool(c, cl, "vibe_log", map[string]any{"text": "Long run along the river"})

	text := callTool(c, cl, "vibe_feed", map[string]any{})

	var doc map[string]any
	c.Assert(json.Unmarshal([]byte(text), &doc), qt.IsNil)
	c.Assert(doc["entries"], qt.HasLen, 2)
	c.Assert(text, checkers.JSONPathEquals("$.from_cache"), false)
	c.Assert(text, checkers.JSONPathEquals("$.entries[0].content"), "Long run along the river")
}

func TestMCPVibeFeed_SearchQuery(t *testing.T) {
	c := qt.New(t)
	b := newBackend(t)
	cl := newMCPClient(c, b.url())

	callTool(c, cl, "vibe_log", map[string]any{"text": "Slept a solid eight hours"})
	callTool(c, cl, "vibe_log", map[string]any{"text": "Long run along the river"})

	text := callTool(c, cl, "vibe_feed", map[string]any{"query": "river"})

	var doc map[string]any
	c.Assert(json.Unmarshal([]byte(text), &doc), qt.IsNil)
	c.Assert(doc["entries"], qt.HasLen, 1)
	c.Assert(text, checkers.JSONPathEquals("$.from_cache"), true)
	c.Assert(text, checkers.JSONPathEquals("$.entries[0].content"), "Long run along the river")
}

// ---------------------------------------------------------------------------
// vibe_chat
// ---------------------------------------------------------------------------

func TestMCPVibeChat_HappyPath(t *testing.T) {
	c := qt.New(t)
	b := newBackend(t)
	cl := newMCPClient(c, b.url())

	text := callTool(c, cl, "vibe_chat", map[string]any{
		"message":         "how did I sleep",
		"conversation_id": "c1",
	})

	c.Assert(text, checkers.JSONPathEquals("$.conversation_id"), "c1")
	c.Assert(text, checkers.JSONPathEquals("$.content"), "Sleep was fine.")
}
