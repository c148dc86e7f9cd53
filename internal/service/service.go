// Package service implements the VibeService orchestrator that wires together
// configuration, the backend API client, the optimistic feed store, the local
// cache, redaction, and journal export.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-ports/vibelog/internal/api"
	"github.com/go-ports/vibelog/internal/cache"
	"github.com/go-ports/vibelog/internal/chat"
	"github.com/go-ports/vibelog/internal/config"
	"github.com/go-ports/vibelog/internal/export"
	"github.com/go-ports/vibelog/internal/feed"
	"github.com/go-ports/vibelog/internal/models"
	"github.com/go-ports/vibelog/internal/redaction"
)

// SubmitResult reports the outcome of one feed submission.
type SubmitResult struct {
	// Entry is the authoritative record on success, or the retained failed
	// placeholder card on error.
	Entry *models.FeedEntry
	// Failed is set when the submission did not reach the backend or was
	// rejected; Entry then carries IsFailed for rendering.
	Failed bool
}

// Service orchestrates all feed and chat operations.
type Service struct {
	VibeHome string
	Config   *config.Config
	Client   *api.Client
	Feed     *feed.Store

	db             *cache.DB
	ignorePatterns []*regexp.Regexp
	mu             sync.Mutex
}

// New initialises a Service rooted at vibeHome.
// If vibeHome is empty it is resolved via config.GetHome.
func New(vibeHome string) (*Service, error) {
	if vibeHome == "" {
		vibeHome = config.GetHome()
	}

	if err := os.MkdirAll(vibeHome, 0o755); err != nil {
		return nil, fmt.Errorf("service.New: create home dir: %w", err)
	}

	cfg, err := config.Load(filepath.Join(vibeHome, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("service.New: load config: %w", err)
	}

	db, err := cache.Open(filepath.Join(vibeHome, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("service.New: open cache: %w", err)
	}

	client := api.New(cfg.API.BaseURL, cfg.API.Token)
	if cfg.API.SubmitTimeoutSeconds > 0 {
		client.SubmitTimeout = time.Duration(cfg.API.SubmitTimeoutSeconds) * time.Second
	}

	return &Service{
		VibeHome: vibeHome,
		Config:   cfg,
		Client:   client,
		Feed:     feed.NewStore(),
		db:       db,
	}, nil
}

// Close releases all resources held by the service.
func (s *Service) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Lazy helpers
// ---------------------------------------------------------------------------

// getIgnorePatterns returns redaction patterns, lazily loaded from .vibeignore.
func (s *Service) getIgnorePatterns() []*regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignorePatterns != nil {
		return s.ignorePatterns
	}
	patterns, err := redaction.LoadVibeIgnore(filepath.Join(s.VibeHome, ".vibeignore"))
	if err != nil {
		slog.Warn("failed to load .vibeignore", "err", err)
	}
	if patterns == nil {
		patterns = make([]*regexp.Regexp, 0)
	}
	s.ignorePatterns = patterns
	return patterns
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

// Submit runs the full submission pipeline: scrub → optimistic placeholder →
// upload → reconcile. The placeholder appears in the feed store before any
// network I/O happens. On failure the placeholder is retained as a failed
// card and the transport error is returned alongside it.
func (s *Service) Submit(ctx context.Context, text, imagePath string) (*SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" && imagePath == "" {
		return nil, fmt.Errorf("Submit: nothing to submit")
	}

	text = redaction.Scrub(text, s.getIgnorePatterns())

	pid := s.Feed.InsertPending(text, imagePath)
	placeholder, _ := s.Feed.Get(pid)

	sub := api.SubmitRequest{
		Text:       text,
		ImagePath:  imagePath,
		ClientTime: time.Now().UTC(),
	}
	if placeholder != nil {
		sub.CorrelationID = placeholder.CorrelationID
	}

	rec, err := s.Client.SubmitEntry(ctx, sub)
	if err != nil {
		s.Feed.MarkFailed(pid)
		failed, _ := s.Feed.Get(pid)
		return &SubmitResult{Entry: failed, Failed: true}, err
	}

	s.Feed.ResolveSuccess(pid, rec)
	if cacheErr := s.db.UpsertEntry(rec); cacheErr != nil {
		slog.Warn("Submit: cache write failed", "id", rec.ID, "err", cacheErr)
	}
	return &SubmitResult{Entry: rec}, nil
}

// Retry resubmits a failed card: the card is dismissed and its content goes
// through the normal Submit pipeline again.
func (s *Service) Retry(ctx context.Context, failedID string) (*SubmitResult, error) {
	e, ok := s.Feed.Get(failedID)
	if !ok || !e.IsFailed {
		return nil, fmt.Errorf("Retry: no failed entry %q", failedID)
	}
	content, imagePath := e.RawContent, e.ImagePath
	s.Feed.Dismiss(failedID)
	return s.Submit(ctx, content, imagePath)
}

// Dismiss drops a failed card from the feed without retrying it.
func (s *Service) Dismiss(id string) {
	s.Feed.Dismiss(id)
}

// ---------------------------------------------------------------------------
// History / Search
// ---------------------------------------------------------------------------

// History fetches recent entries from the backend, replaces the feed store
// baseline, and refreshes the cache. When the backend is unreachable it
// falls back to cached entries and reports fromCache=true.
func (s *Service) History(ctx context.Context, limit int) (entries []*models.FeedEntry, fromCache bool, err error) {
	if limit <= 0 {
		limit = s.Config.Feed.HistoryLimit
	}

	remote, err := s.Client.FeedHistory(ctx, limit)
	if err != nil {
		slog.Warn("History: backend unavailable, using cache", "err", err)
		cached, cacheErr := s.db.ListRecent(limit)
		if cacheErr != nil {
			return nil, false, fmt.Errorf("History: backend: %w (cache also failed: %v)", err, cacheErr)
		}
		entries = make([]*models.FeedEntry, len(cached))
		for i := range cached {
			entries[i] = &cached[i]
		}
		s.Feed.Replace(entries)
		return entries, true, nil
	}

	s.Feed.Replace(remote)
	byValue := make([]models.FeedEntry, len(remote))
	for i, e := range remote {
		byValue[i] = *e
	}
	if _, cacheErr := s.db.UpsertEntries(byValue); cacheErr != nil {
		slog.Warn("History: cache refresh failed", "err", cacheErr)
	}
	return remote, false, nil
}

// Search runs a full-text search over the local cache.
func (s *Service) Search(query string, limit int) ([]models.FeedEntry, error) {
	if limit <= 0 {
		limit = s.Config.Feed.HistoryLimit
	}
	return s.db.Search(query, limit)
}

// ---------------------------------------------------------------------------
// Bookmark / Export
// ---------------------------------------------------------------------------

// Bookmark toggles the bookmark flag on the backend and mirrors the new
// state into the cache. Returns the new bookmark state.
func (s *Service) Bookmark(ctx context.Context, id string, on bool) (bool, error) {
	state, err := s.Client.SetBookmark(ctx, id, on)
	if err != nil {
		return false, err
	}
	if _, cacheErr := s.db.SetBookmarked(id, state); cacheErr != nil {
		slog.Warn("Bookmark: cache update failed", "id", id, "err", cacheErr)
	}
	return state, nil
}

// Export writes day-grouped journal markdown for all cached entries into
// dir (defaults to <home>/journal). Returns the written file paths.
func (s *Service) Export(dir string) ([]string, error) {
	if dir == "" {
		dir = filepath.Join(s.VibeHome, "journal")
	}
	entries, err := s.db.ListRecent(0)
	if err != nil {
		return nil, fmt.Errorf("Export: list cached entries: %w", err)
	}
	return export.WriteJournal(dir, entries)
}

// CountCached returns the number of entries in the local cache.
func (s *Service) CountCached() (int, error) {
	return s.db.CountEntries()
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// chatStreamer adapts the API client to chat.Streamer, scrubbing outgoing
// text before it leaves the machine.
type chatStreamer struct {
	svc *Service
}

func (w chatStreamer) StreamMessage(ctx context.Context, conversationID, content string) (io.ReadCloser, error) {
	content = redaction.Scrub(content, w.svc.getIgnorePatterns())
	return w.svc.Client.StreamMessage(ctx, conversationID, content)
}

// NewChatSession returns a chat session bound to conversationID (empty for a
// new conversation). Outgoing messages pass through redaction first.
func (s *Service) NewChatSession(conversationID string) *chat.Session {
	return chat.NewSession(chatStreamer{svc: s}, conversationID)
}

// Conversations lists conversation headers, refreshing the cache as a side
// effect. Falls back to cached headers when the backend is unreachable.
func (s *Service) Conversations(ctx context.Context) ([]models.Conversation, bool, error) {
	convs, err := s.Client.Conversations(ctx)
	if err != nil {
		slog.Warn("Conversations: backend unavailable, using cache", "err", err)
		cached, cacheErr := s.db.ListConversations()
		if cacheErr != nil {
			return nil, false, fmt.Errorf("Conversations: backend: %w (cache also failed: %v)", err, cacheErr)
		}
		return cached, true, nil
	}
	for i := range convs {
		if cacheErr := s.db.UpsertConversation(&convs[i]); cacheErr != nil {
			slog.Warn("Conversations: cache write failed", "id", convs[i].ID, "err", cacheErr)
		}
	}
	return convs, false, nil
}

// Conversation fetches one conversation with its message history.
func (s *Service) Conversation(ctx context.Context, id string) (*api.ConversationDetail, error) {
	return s.Client.Conversation(ctx, id)
}

// DeleteConversation removes a conversation on the backend and in the cache.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if err := s.Client.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if _, cacheErr := s.db.DeleteConversation(id); cacheErr != nil {
		slog.Warn("DeleteConversation: cache delete failed", "id", id, "err", cacheErr)
	}
	return nil
}
