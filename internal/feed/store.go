// Package feed implements the optimistic feed store: new submissions appear
// in the list immediately as pending placeholders and are reconciled with the
// authoritative backend record on success, or converted to retryable failed
// cards on error.
package feed

import (
	"sync"

	"github.com/go-ports/vibelog/internal/models"
)

// Store holds feed entries keyed by id plus the ordered id list that is the
// sole source of truth for render order. Every mutation is applied as a
// single transition under the lock, so readers never observe a partial list.
type Store struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*models.FeedEntry
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*models.FeedEntry)}
}

// InsertPending creates a placeholder entry for content, prepends it to the
// list, and returns its placeholder id. It never fails.
func (s *Store) InsertPending(content, imagePath string) string {
	e := models.NewPending(content, imagePath)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	s.order = append([]string{e.ID}, s.order...)
	return e.ID
}

// ResolveSuccess replaces a placeholder with the authoritative backend
// record at the same list position. The placeholder is located by correlation
// id when the record carries one, then by placeholderID, then by the oldest
// remaining placeholder. When no placeholder exists the record is prepended
// instead. The original user-typed content is carried forward, and a generic
// backend summary is replaced by that content for display.
func (s *Store) ResolveSuccess(placeholderID string, rec *models.FeedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findPlaceholder(placeholderID, rec.CorrelationID)
	if idx < 0 {
		s.entries[rec.ID] = rec
		s.order = append([]string{rec.ID}, s.order...)
		return
	}

	old := s.entries[s.order[idx]]
	if old != nil {
		if rec.CorrelationID == "" {
			rec.CorrelationID = old.CorrelationID
		}
		if rec.RawContent == "" {
			rec.RawContent = old.RawContent
		}
		if models.GenericInsight(rec.AIInsight) && old.RawContent != "" {
			rec.AIInsight = old.RawContent
		}
		if rec.ImagePath == "" {
			rec.ImagePath = old.ImagePath
		}
	}

	delete(s.entries, s.order[idx])
	s.order[idx] = rec.ID
	s.entries[rec.ID] = rec
}

// ResolveFailure removes every placeholder from the store and returns the
// failed submission's original content and image path so the caller can
// repopulate the input for a retry. Missing placeholders are tolerated.
func (s *Store) ResolveFailure(placeholderID string) (content, imagePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.entries[placeholderID]; e != nil {
		content, imagePath = e.RawContent, e.ImagePath
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if e := s.entries[id]; e != nil && e.IsPending() {
			delete(s.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return content, imagePath
}

// MarkFailed flags a placeholder as failed while retaining it in the list as
// a dismissible, retryable card.
func (s *Store) MarkFailed(placeholderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entries[placeholderID]; e != nil {
		e.IsFailed = true
	}
}

// Dismiss removes a single entry (typically a failed card) from the store.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Replace swaps the whole store contents for entries, preserving their
// order. Used when a fresh history fetch becomes the new baseline.
func (s *Store) Replace(entries []*models.FeedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = make([]string, 0, len(entries))
	s.entries = make(map[string]*models.FeedEntry, len(entries))
	for _, e := range entries {
		s.order = append(s.order, e.ID)
		s.entries[e.ID] = e
	}
}

// Entries materialises the ordered entry list for rendering.
func (s *Store) Entries() []*models.FeedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.FeedEntry, 0, len(s.order))
	for _, id := range s.order {
		if e := s.entries[id]; e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry with the given id, if present.
func (s *Store) Get(id string) (*models.FeedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Len returns the number of entries currently in the list.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Reset clears the store. Callers invoke it at navigation/teardown
// boundaries instead of relying on ambient global state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.entries = make(map[string]*models.FeedEntry)
}

// findPlaceholder returns the index in order of the placeholder to replace:
// a correlation-id match wins, then the explicit placeholder id, then the
// oldest (last-positioned) remaining placeholder. Returns -1 when none exist.
func (s *Store) findPlaceholder(placeholderID, correlationID string) int {
	if correlationID != "" {
		for i, id := range s.order {
			if e := s.entries[id]; e != nil && e.IsPending() && e.CorrelationID == correlationID {
				return i
			}
		}
	}
	if placeholderID != "" {
		for i, id := range s.order {
			if id == placeholderID {
				if e := s.entries[id]; e != nil && e.IsPending() {
					return i
				}
			}
		}
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		if e := s.entries[s.order[i]]; e != nil && e.IsPending() {
			return i
		}
	}
	return -1
}
