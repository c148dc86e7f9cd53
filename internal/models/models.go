// Package models defines the core data types for the vibelog client.
package models

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yalp/jsonpath"
)

// PendingIDPrefix marks locally generated placeholder ids for feed entries
// that have not yet been confirmed by the backend.
const PendingIDPrefix = "temp-"

// ValidCategories lists the backend's feed entry classification values.
var ValidCategories = []string{
	"SLEEP", "DIET", "SCREEN", "ACTIVITY", "MOOD", "SOCIAL", "WORK", "GROWTH", "LEISURE",
}

// CategoryHeadings maps category keys to journal export heading text.
var CategoryHeadings = map[string]string{
	"SLEEP":    "Sleep",
	"DIET":     "Diet",
	"SCREEN":   "Screen Time",
	"ACTIVITY": "Activity",
	"MOOD":     "Mood",
	"SOCIAL":   "Social",
	"WORK":     "Work",
	"GROWTH":   "Growth",
	"LEISURE":  "Leisure",
}

// FeedEntry is a single life-log record. The backend owns classification,
// scoring, and the MetaData schema; the client treats MetaData as opaque
// beyond known optional keys.
type FeedEntry struct {
	ID              string             `json:"id"`
	CorrelationID   string             `json:"client_ref,omitempty"`
	Category        string             `json:"category,omitempty"`
	RawContent      string             `json:"raw_content,omitempty"`
	MetaData        map[string]any     `json:"meta_data,omitempty"`
	AIInsight       string             `json:"ai_insight,omitempty"`
	Tags            []string           `json:"tags,omitempty"`
	DimensionScores map[string]float64 `json:"dimension_scores,omitempty"`
	ImagePath       string             `json:"image_path,omitempty"`
	ThumbnailPath   string             `json:"thumbnail_path,omitempty"`
	IsPublic        bool               `json:"is_public,omitempty"`
	IsBookmarked    bool               `json:"is_bookmarked,omitempty"`
	IsFailed        bool               `json:"-"`
	CreatedAt       time.Time          `json:"created_at"`
	RecordTime      *time.Time         `json:"record_time,omitempty"`
}

// pendingSeq disambiguates placeholder ids created within the same
// millisecond.
var pendingSeq atomic.Int64

// NewPending constructs a placeholder entry shown immediately on submission,
// before the backend confirms it. The id carries the temp- prefix; the
// correlation id is a fresh UUID carried through the submit round trip so a
// success response can be matched back to its placeholder.
func NewPending(content, imagePath string) *FeedEntry {
	now := time.Now().UTC()
	return &FeedEntry{
		ID: PendingIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) +
			"-" + strconv.FormatInt(pendingSeq.Add(1), 10),
		CorrelationID: uuid.NewString(),
		RawContent:    content,
		ImagePath:     imagePath,
		CreatedAt:     now,
	}
}

// IsPending reports whether id names an unconfirmed placeholder.
func IsPending(id string) bool {
	return strings.HasPrefix(id, PendingIDPrefix)
}

// IsPending reports whether the entry is an unconfirmed placeholder.
func (e *FeedEntry) IsPending() bool {
	return IsPending(e.ID)
}

// DisplayTime returns the user-intended occurrence time when present,
// otherwise the creation time. Feeds sort and render on this value.
func (e *FeedEntry) DisplayTime() time.Time {
	if e.RecordTime != nil && !e.RecordTime.IsZero() {
		return *e.RecordTime
	}
	return e.CreatedAt
}

// MetaField extracts a known optional key from the opaque MetaData map using
// a jsonpath expression, e.g. MetaField(e, "$.scores.energy").
// Returns (nil, false) when the entry has no metadata or the path is absent.
func MetaField(e *FeedEntry, path string) (any, bool) {
	if len(e.MetaData) == 0 {
		return nil, false
	}
	v, err := jsonpath.Read(map[string]any(e.MetaData), path)
	if err != nil {
		return nil, false
	}
	return v, true
}

// genericInsights are canned backend acknowledgements too uninformative to
// display on their own.
var genericInsights = map[string]bool{
	"已记录":      true,
	"recorded": true,
	"noted":    true,
}

// GenericInsight reports whether an AI summary is too generic to display:
// empty, exactly a canned phrase, or shorter than 5 characters. Callers show
// the original user input instead.
func GenericInsight(insight string) bool {
	s := strings.TrimSpace(insight)
	if s == "" {
		return true
	}
	if genericInsights[strings.ToLower(s)] {
		return true
	}
	return len([]rune(s)) < 5
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one chat thread with the assistant.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Message is a single chat turn. Insertion order is chronological and never
// reordered.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a message with a fresh UUID and the current time.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
