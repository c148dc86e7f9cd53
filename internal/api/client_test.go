package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/vibelog/internal/api"
)

// newJSONServer responds to every request with the given status and JSON
// body, recording the last request seen.
func newJSONServer(t *testing.T, status int, body any) (*httptest.Server, *http.Request) {
	t.Helper()
	var last http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r
		_ = r.ParseMultipartForm(1 << 20)
		last.MultipartForm = r.MultipartForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	return srv, &last
}

// ---------------------------------------------------------------------------
// FeedHistory
// ---------------------------------------------------------------------------

func TestFeedHistory_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, []map[string]any{
		{"id": "r1", "category": "SLEEP", "ai_insight": "Good rest"},
		{"id": "r2", "category": "DIET"},
	})
	defer srv.Close()

	cl := api.New(srv.URL, "tok-123")
	entries, err := cl.FeedHistory(context.Background(), 20)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].ID, qt.Equals, "r1")
	c.Assert(entries[0].Category, qt.Equals, "SLEEP")

	c.Assert(last.URL.Path, qt.Equals, "/api/feed/history")
	c.Assert(last.URL.Query().Get("limit"), qt.Equals, "20")
	c.Assert(last.Header.Get("Authorization"), qt.Equals, "Bearer tok-123")
}

func TestFeedHistory_AnonymousOmitsAuthHeader(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, []map[string]any{})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	_, err := cl.FeedHistory(context.Background(), 5)
	c.Assert(err, qt.IsNil)
	c.Assert(last.Header.Get("Authorization"), qt.Equals, "")
}

func TestFeedHistory_FailurePath(t *testing.T) {
	c := qt.New(t)

	srv, _ := newJSONServer(t, http.StatusInternalServerError, map[string]any{"detail": "db down"})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	_, err := cl.FeedHistory(context.Background(), 5)
	c.Assert(err, qt.IsNotNil)

	var statusErr *api.StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsTrue)
	c.Assert(statusErr.Code, qt.Equals, 500)
	c.Assert(statusErr.Detail, qt.Equals, "db down")
}

// ---------------------------------------------------------------------------
// SubmitEntry
// ---------------------------------------------------------------------------

func TestSubmitEntry_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, map[string]any{
		"id":         "r42",
		"category":   "SLEEP",
		"ai_insight": "已记录",
	})
	defer srv.Close()

	cl := api.New(srv.URL, "tok")
	entry, err := cl.SubmitEntry(context.Background(), api.SubmitRequest{
		Text:          "Slept 7 hours",
		ClientTime:    time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC),
		CorrelationID: "corr-1",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(entry.ID, qt.Equals, "r42")
	c.Assert(entry.Category, qt.Equals, "SLEEP")
	// The correlation id survives the round trip even when the server does
	// not echo it.
	c.Assert(entry.CorrelationID, qt.Equals, "corr-1")

	c.Assert(last.URL.Path, qt.Equals, "/api/feed")
	c.Assert(last.MultipartForm, qt.IsNotNil)
	c.Assert(last.MultipartForm.Value["text"], qt.DeepEquals, []string{"Slept 7 hours"})
	c.Assert(last.MultipartForm.Value["client_time"], qt.DeepEquals, []string{"2026-08-23T08:00:00Z"})
	c.Assert(last.MultipartForm.Value["client_ref"], qt.DeepEquals, []string{"corr-1"})
}

func TestSubmitEntry_Timeout(t *testing.T) {
	c := qt.New(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	cl := api.New(srv.URL, "")
	cl.SubmitTimeout = 50 * time.Millisecond

	_, err := cl.SubmitEntry(context.Background(), api.SubmitRequest{Text: "late entry"})
	c.Assert(err, qt.IsNotNil)
	c.Assert(errors.Is(err, api.ErrTimeout), qt.IsTrue)
}

func TestSubmitEntry_FailurePath(t *testing.T) {
	c := qt.New(t)

	srv, _ := newJSONServer(t, http.StatusUnprocessableEntity, map[string]any{"detail": "text required"})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	_, err := cl.SubmitEntry(context.Background(), api.SubmitRequest{Text: ""})
	c.Assert(err, qt.IsNotNil)

	var statusErr *api.StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsTrue)
	c.Assert(statusErr.Code, qt.Equals, 422)
	c.Assert(statusErr.Detail, qt.Equals, "text required")
}

// ---------------------------------------------------------------------------
// UpdateEntry / SetBookmark
// ---------------------------------------------------------------------------

func TestUpdateEntry_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, map[string]any{"id": "r1", "category": "MOOD"})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	entry, err := cl.UpdateEntry(context.Background(), "r1", map[string]any{"category": "MOOD"})
	c.Assert(err, qt.IsNil)
	c.Assert(entry.Category, qt.Equals, "MOOD")
	c.Assert(last.Method, qt.Equals, http.MethodPatch)
	c.Assert(last.URL.Path, qt.Equals, "/api/feed/r1")
}

func TestSetBookmark_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, map[string]any{"is_bookmarked": true})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	on, err := cl.SetBookmark(context.Background(), "r1", true)
	c.Assert(err, qt.IsNil)
	c.Assert(on, qt.IsTrue)
	c.Assert(last.URL.Path, qt.Equals, "/api/feed/r1/bookmark")
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func TestSendMessage_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, map[string]any{"content": "You are doing fine."})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	reply, err := cl.SendMessage(context.Background(), "c1", "how am I doing")
	c.Assert(err, qt.IsNil)
	c.Assert(reply, qt.Equals, "You are doing fine.")
	c.Assert(last.URL.Path, qt.Equals, "/api/chat/message")
}

func TestStreamMessage_HappyPath(t *testing.T) {
	c := qt.New(t)

	streamBody := "data: {\"conversation_id\":\"c1\"}\ndata: {\"content\":\"hi\"}\ndata: {\"done\":true}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, streamBody)
	}))
	defer srv.Close()

	cl := api.New(srv.URL, "")
	body, err := cl.StreamMessage(context.Background(), "", "hello")
	c.Assert(err, qt.IsNil)
	defer body.Close()

	got, err := io.ReadAll(body)
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, streamBody)
}

func TestStreamMessage_FailurePath(t *testing.T) {
	c := qt.New(t)

	srv, _ := newJSONServer(t, http.StatusTooManyRequests, map[string]any{"detail": "rate limited"})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	_, err := cl.StreamMessage(context.Background(), "", "hello")
	c.Assert(err, qt.IsNotNil)

	var statusErr *api.StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsTrue)
	c.Assert(statusErr.Code, qt.Equals, 429)
	c.Assert(statusErr.Detail, qt.Equals, "rate limited")
}

// ---------------------------------------------------------------------------
// Conversations CRUD
// ---------------------------------------------------------------------------

func TestConversations_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, _ := newJSONServer(t, http.StatusOK, []map[string]any{
		{"id": "c1", "title": "Sleep questions"},
	})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	convs, err := cl.Conversations(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(convs, qt.HasLen, 1)
	c.Assert(convs[0].Title, qt.Equals, "Sleep questions")
}

func TestConversation_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, map[string]any{
		"conversation": map[string]any{"id": "c1", "title": "t"},
		"messages": []map[string]any{
			{"id": "m1", "role": "user", "content": "hi"},
			{"id": "m2", "role": "assistant", "content": "hello"},
		},
	})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	detail, err := cl.Conversation(context.Background(), "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(detail.Conversation.ID, qt.Equals, "c1")
	c.Assert(detail.Messages, qt.HasLen, 2)
	c.Assert(last.URL.Path, qt.Equals, "/api/chat/conversations/c1")
}

func TestCreateAndDeleteConversation_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv, last := newJSONServer(t, http.StatusOK, map[string]any{"id": "c7", "title": "新会话"})
	defer srv.Close()

	cl := api.New(srv.URL, "")
	conv, err := cl.CreateConversation(context.Background(), "新会话")
	c.Assert(err, qt.IsNil)
	c.Assert(conv.ID, qt.Equals, "c7")
	c.Assert(last.Method, qt.Equals, http.MethodPost)

	c.Assert(cl.DeleteConversation(context.Background(), "c7"), qt.IsNil)
	c.Assert(last.Method, qt.Equals, http.MethodDelete)
	c.Assert(last.URL.Path, qt.Equals, "/api/chat/conversations/c7")
}

// TestStatusError_PlainBodySnippet checks non-JSON error bodies still
// surface as detail text.
func TestStatusError_PlainBodySnippet(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	cl := api.New(srv.URL, "")
	_, err := cl.FeedHistory(context.Background(), 1)

	var statusErr *api.StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsTrue)
	c.Assert(statusErr.Code, qt.Equals, 502)
	c.Assert(statusErr.Detail, qt.Equals, "bad gateway")
}
