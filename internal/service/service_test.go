package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/vibelog/internal/models"
	"github.com/go-ports/vibelog/internal/service"
)

// newService builds a Service rooted in a temp home pointed at baseURL.
func newService(c *qt.C, baseURL string) *service.Service {
	home := c.TB.TempDir()
	cfgContent := "api:\n  base_url: " + baseURL + "\n"
	err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfgContent), 0o600)
	c.Assert(err, qt.IsNil)

	svc, err := service.New(home)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = svc.Close() })
	return svc
}

func serverEntry(id, category, content, insight string) map[string]any {
	return map[string]any{
		"id":          id,
		"category":    category,
		"raw_content": content,
		"ai_insight":  insight,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

func TestSubmit_HappyPath(t *testing.T) {
	c := qt.New(t)

	var gotText, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.URL.Path, qt.Equals, "/api/feed")
		c.Assert(r.ParseMultipartForm(1<<20), qt.IsNil)
		gotText = r.FormValue("text")
		gotRef = r.FormValue("client_ref")

		resp := serverEntry("r42", "SLEEP", gotText, "Sleep looks consistent this week.")
		resp["client_ref"] = gotRef
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)

	res, err := svc.Submit(context.Background(), "Slept 7 hours", "")
	c.Assert(err, qt.IsNil)
	c.Assert(res.Failed, qt.IsFalse)
	c.Assert(res.Entry.ID, qt.Equals, "r42")
	c.Assert(gotText, qt.Equals, "Slept 7 hours")
	c.Assert(gotRef, qt.Not(qt.Equals), "")

	// The feed holds exactly the confirmed entry, no leftover placeholder.
	entries := svc.Feed.Entries()
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].ID, qt.Equals, "r42")
	c.Assert(entries[0].IsPending(), qt.IsFalse)

	// The confirmed entry landed in the cache.
	n, err := svc.CountCached()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
}

func TestSubmit_ScrubsPrivateText(t *testing.T) {
	c := qt.New(t)

	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.ParseMultipartForm(1<<20), qt.IsNil)
		gotText = r.FormValue("text")
		_ = json.NewEncoder(w).Encode(serverEntry("r1", "SOCIAL", gotText, "Noted your meeting."))
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)

	_, err := svc.Submit(context.Background(), "Met <private>Dr. Chen</private> for coffee", "")
	c.Assert(err, qt.IsNil)
	c.Assert(gotText, qt.Equals, "Met [PRIVATE] for coffee")
}

func TestSubmit_FailureRetainsFailedCard(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"classification unavailable"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)

	res, err := svc.Submit(context.Background(), "Lost entry", "")
	c.Assert(err, qt.IsNotNil)
	c.Assert(res.Failed, qt.IsTrue)
	c.Assert(res.Entry.IsFailed, qt.IsTrue)
	c.Assert(res.Entry.RawContent, qt.Equals, "Lost entry")

	entries := svc.Feed.Entries()
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].IsFailed, qt.IsTrue)

	// Failed submissions never reach the cache.
	n, err := svc.CountCached()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func TestSubmit_EmptyRejected(t *testing.T) {
	c := qt.New(t)
	svc := newService(c, "http://127.0.0.1:1")

	_, err := svc.Submit(context.Background(), "   ", "")
	c.Assert(err, qt.IsNotNil)
	c.Assert(svc.Feed.Len(), qt.Equals, 0)
}

func TestRetry_ResubmitsFailedCard(t *testing.T) {
	c := qt.New(t)

	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, `{"detail":"down"}`, http.StatusServiceUnavailable)
			return
		}
		c.Assert(r.ParseMultipartForm(1<<20), qt.IsNil)
		_ = json.NewEncoder(w).Encode(serverEntry("r9", "MOOD", r.FormValue("text"), "Better now."))
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)

	res, err := svc.Submit(context.Background(), "Feeling off today", "")
	c.Assert(err, qt.IsNotNil)
	failedID := res.Entry.ID

	fail = false
	res, err = svc.Retry(context.Background(), failedID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Entry.ID, qt.Equals, "r9")
	c.Assert(res.Entry.RawContent, qt.Equals, "Feeling off today")

	entries := svc.Feed.Entries()
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].ID, qt.Equals, "r9")
}

func TestRetry_UnknownIDRejected(t *testing.T) {
	c := qt.New(t)
	svc := newService(c, "http://127.0.0.1:1")

	_, err := svc.Retry(context.Background(), "nope")
	c.Assert(err, qt.IsNotNil)
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestHistory_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.URL.Path, qt.Equals, "/api/feed/history")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			serverEntry("r2", "DIET", "Big lunch", "Balanced enough."),
			serverEntry("r1", "SLEEP", "Slept well", "Good rest."),
		})
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)

	entries, fromCache, err := svc.History(context.Background(), 10)
	c.Assert(err, qt.IsNil)
	c.Assert(fromCache, qt.IsFalse)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(svc.Feed.Len(), qt.Equals, 2)

	n, err := svc.CountCached()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)
}

func TestHistory_FallsBackToCache(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			serverEntry("r1", "SLEEP", "Slept well", "Good rest."),
		})
	}))

	svc := newService(c, srv.URL)

	_, fromCache, err := svc.History(context.Background(), 10)
	c.Assert(err, qt.IsNil)
	c.Assert(fromCache, qt.IsFalse)

	// Backend goes away; the cached copy still serves.
	srv.Close()

	entries, fromCache, err := svc.History(context.Background(), 10)
	c.Assert(err, qt.IsNil)
	c.Assert(fromCache, qt.IsTrue)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].ID, qt.Equals, "r1")
	c.Assert(svc.Feed.Len(), qt.Equals, 1)
}

// ---------------------------------------------------------------------------
// Search / Bookmark / Export
// ---------------------------------------------------------------------------

func TestSearch_UsesLocalCache(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			serverEntry("r1", "ACTIVITY", "Ran along the river", "Nice pace."),
			serverEntry("r2", "DIET", "Pasta for dinner", "Carb heavy."),
		})
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)
	_, _, err := svc.History(context.Background(), 10)
	c.Assert(err, qt.IsNil)

	got, err := svc.Search("river", 10)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
	c.Assert(got[0].ID, qt.Equals, "r1")
}

func TestBookmark_MirrorsCache(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/bookmark"):
			_ = json.NewEncoder(w).Encode(map[string]any{"is_bookmarked": true})
		default:
			_ = json.NewEncoder(w).Encode([]map[string]any{
				serverEntry("r1", "SLEEP", "Slept well", "Good rest."),
			})
		}
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)
	_, _, err := svc.History(context.Background(), 10)
	c.Assert(err, qt.IsNil)

	on, err := svc.Bookmark(context.Background(), "r1", true)
	c.Assert(err, qt.IsNil)
	c.Assert(on, qt.IsTrue)

	got, err := svc.Search("slept", 10)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
	c.Assert(got[0].IsBookmarked, qt.IsTrue)
}

func TestExport_WritesJournalFromCache(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			serverEntry("r1", "SLEEP", "Slept well", "Good rest."),
		})
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)
	_, _, err := svc.History(context.Background(), 10)
	c.Assert(err, qt.IsNil)

	paths, err := svc.Export("")
	c.Assert(err, qt.IsNil)
	c.Assert(paths, qt.HasLen, 1)
	c.Assert(strings.HasPrefix(paths[0], svc.VibeHome), qt.IsTrue)

	content, err := os.ReadFile(paths[0])
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Contains(string(content), "Slept well"), qt.IsTrue)
	c.Assert(strings.Contains(string(content), "## Sleep"), qt.IsTrue)
}

// ---------------------------------------------------------------------------
// Chat / Conversations
// ---------------------------------------------------------------------------

func TestNewChatSession_StreamsAndScrubs(t *testing.T) {
	c := qt.New(t)

	var gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.URL.Path, qt.Equals, "/api/chat/stream")
		var req struct {
			Content string `json:"content"`
		}
		c.Assert(json.NewDecoder(r.Body).Decode(&req), qt.IsNil)
		gotContent = req.Content

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"conversation_id\":\"c1\",\"is_new\":true}\n"))
		_, _ = w.Write([]byte("data: {\"content\":\"Hello \"}\n"))
		_, _ = w.Write([]byte("data: {\"content\":\"there\"}\n"))
		_, _ = w.Write([]byte("data: {\"done\":true}\n"))
	}))
	defer srv.Close()

	svc := newService(c, srv.URL)
	sess := svc.NewChatSession("")

	err := sess.Send(context.Background(), "My password = hunter2 leaked, advice?")
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Contains(gotContent, "hunter2"), qt.IsFalse)
	c.Assert(strings.Contains(gotContent, "[PRIVATE]"), qt.IsTrue)

	msgs := sess.Messages()
	c.Assert(msgs, qt.HasLen, 2)
	c.Assert(msgs[1].Role, qt.Equals, models.RoleAssistant)
	c.Assert(msgs[1].Content, qt.Equals, "Hello there")
	c.Assert(sess.ConversationID(), qt.Equals, "c1")
}

func TestConversations_FallsBackToCache(t *testing.T) {
	c := qt.New(t)

	now := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "c1", "title": "Sleep chat", "created_at": now.Format(time.RFC3339), "updated_at": now.Format(time.RFC3339)},
		})
	}))

	svc := newService(c, srv.URL)

	convs, fromCache, err := svc.Conversations(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(fromCache, qt.IsFalse)
	c.Assert(convs, qt.HasLen, 1)

	srv.Close()

	convs, fromCache, err = svc.Conversations(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(fromCache, qt.IsTrue)
	c.Assert(convs, qt.HasLen, 1)
	c.Assert(convs[0].Title, qt.Equals, "Sleep chat")
}
