// Package cache manages the local SQLite cache of feed entries and
// conversations, with FTS5 full-text search over entry content.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/vibelog/internal/models"
)

// DB wraps a *sql.DB with the path it was opened from.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite cache at path and initialises the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("cache.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("cache.Open createSchema: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			rowid            INTEGER PRIMARY KEY AUTOINCREMENT,
			id               TEXT UNIQUE NOT NULL,
			correlation_id   TEXT,
			category         TEXT NOT NULL,
			raw_content      TEXT NOT NULL,
			meta_data        TEXT,
			ai_insight       TEXT,
			tags             TEXT,
			dimension_scores TEXT,
			image_path       TEXT,
			thumbnail_path   TEXT,
			is_public        INTEGER NOT NULL DEFAULT 0,
			is_bookmarked    INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL,
			record_time      TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			title      TEXT,
			created_at TEXT,
			updated_at TEXT
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			raw_content, ai_insight, category, tags,
			content='entries', content_rowid='rowid',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, raw_content, ai_insight, category, tags)
			VALUES (new.rowid, new.raw_content, new.ai_insight, new.category, new.tags);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_au AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, raw_content, ai_insight, category, tags)
			VALUES ('delete', old.rowid, old.raw_content, old.ai_insight, old.category, old.tags);
			INSERT INTO entries_fts(rowid, raw_content, ai_insight, category, tags)
			VALUES (new.rowid, new.raw_content, new.ai_insight, new.category, new.tags);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, raw_content, ai_insight, category, tags)
			VALUES ('delete', old.rowid, old.raw_content, old.ai_insight, old.category, old.tags);
		END`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

// UpsertEntry inserts or replaces a single server-confirmed entry.
// Placeholder entries are skipped: only stable server ids are cached.
func (d *DB) UpsertEntry(e *models.FeedEntry) error {
	if models.IsPending(e.ID) {
		return nil
	}

	metaJSON, err := marshalOrNull(e.MetaData)
	if err != nil {
		return fmt.Errorf("UpsertEntry: marshal meta: %w", err)
	}
	tagsJSON, err := marshalOrNull(e.Tags)
	if err != nil {
		return fmt.Errorf("UpsertEntry: marshal tags: %w", err)
	}
	scoresJSON, err := marshalOrNull(e.DimensionScores)
	if err != nil {
		return fmt.Errorf("UpsertEntry: marshal scores: %w", err)
	}

	var recordTime any
	if e.RecordTime != nil {
		recordTime = e.RecordTime.UTC().Format(time.RFC3339)
	}

	_, err = d.db.Exec(`
		INSERT INTO entries (
			id, correlation_id, category, raw_content, meta_data, ai_insight,
			tags, dimension_scores, image_path, thumbnail_path,
			is_public, is_bookmarked, created_at, record_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			correlation_id   = excluded.correlation_id,
			category         = excluded.category,
			raw_content      = excluded.raw_content,
			meta_data        = excluded.meta_data,
			ai_insight       = excluded.ai_insight,
			tags             = excluded.tags,
			dimension_scores = excluded.dimension_scores,
			image_path       = excluded.image_path,
			thumbnail_path   = excluded.thumbnail_path,
			is_public        = excluded.is_public,
			is_bookmarked    = excluded.is_bookmarked,
			created_at       = excluded.created_at,
			record_time      = excluded.record_time`,
		e.ID, e.CorrelationID, e.Category, e.RawContent, metaJSON, e.AIInsight,
		tagsJSON, scoresJSON, e.ImagePath, e.ThumbnailPath,
		boolToInt(e.IsPublic), boolToInt(e.IsBookmarked),
		e.CreatedAt.UTC().Format(time.RFC3339), recordTime,
	)
	if err != nil {
		return fmt.Errorf("UpsertEntry: %w", err)
	}
	return nil
}

// UpsertEntries upserts a batch of entries, skipping placeholders.
// Returns the number of entries written.
func (d *DB) UpsertEntries(entries []models.FeedEntry) (int, error) {
	n := 0
	for i := range entries {
		if models.IsPending(entries[i].ID) {
			continue
		}
		if err := d.UpsertEntry(&entries[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// GetEntry fetches a single cached entry by exact id.
func (d *DB) GetEntry(id string) (*models.FeedEntry, bool, error) {
	rows, err := d.db.Query(selectEntry+` WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil || len(entries) == 0 {
		return nil, false, err
	}
	return &entries[0], true, nil
}

// ListRecent returns cached entries newest first. limit <= 0 means no limit.
func (d *DB) ListRecent(limit int) ([]models.FeedEntry, error) {
	q := selectEntry + ` ORDER BY created_at DESC, rowid DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = d.db.Query(q+` LIMIT ?`, limit)
	} else {
		rows, err = d.db.Query(q)
	}
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search performs a BM25 full-text search over cached entries.
func (d *DB) Search(query string, limit int) ([]models.FeedEntry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	// Build "term1"* OR "term2"* FTS5 query.
	terms := strings.Fields(query)
	ftsParts := make([]string, len(terms))
	for i, t := range terms {
		ftsParts[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	ftsQuery := strings.Join(ftsParts, " OR ")

	rows, err := d.db.Query(`
		SELECT e.id, e.correlation_id, e.category, e.raw_content, e.meta_data,
		       e.ai_insight, e.tags, e.dimension_scores, e.image_path,
		       e.thumbnail_path, e.is_public, e.is_bookmarked, e.created_at,
		       e.record_time
		FROM entries_fts fts
		JOIN entries e ON e.rowid = fts.rowid
		WHERE fts.entries_fts MATCH ?
		ORDER BY fts.rank
		LIMIT ?`,
		ftsQuery, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// SetBookmarked flips the bookmark flag on a cached entry.
// Returns true if the entry was found.
func (d *DB) SetBookmarked(id string, bookmarked bool) (bool, error) {
	res, err := d.db.Exec(
		`UPDATE entries SET is_bookmarked = ? WHERE id = ?`,
		boolToInt(bookmarked), id,
	)
	if err != nil {
		return false, fmt.Errorf("SetBookmarked: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteEntry removes a cached entry. Returns true if a row was deleted.
func (d *DB) DeleteEntry(id string) (bool, error) {
	res, err := d.db.Exec(`DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("DeleteEntry: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountEntries returns the total number of cached entries.
func (d *DB) CountEntries() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

// UpsertConversation inserts or replaces a conversation header.
func (d *DB) UpsertConversation(conv *models.Conversation) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO conversations (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("UpsertConversation: %w", err)
	}
	return nil
}

// ListConversations returns cached conversation headers, most recent first.
func (d *DB) ListConversations() ([]models.Conversation, error) {
	rows, err := d.db.Query(
		`SELECT id, title, created_at, updated_at FROM conversations
		 ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ListConversations: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var created, updated string
		if err := rows.Scan(&conv.ID, &conv.Title, &created, &updated); err != nil {
			return nil, err
		}
		conv.CreatedAt, _ = time.Parse(time.RFC3339, created)
		conv.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a cached conversation header.
// Returns true if a row was deleted.
func (d *DB) DeleteConversation(id string) (bool, error) {
	res, err := d.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("DeleteConversation: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const selectEntry = `
	SELECT id, correlation_id, category, raw_content, meta_data, ai_insight,
	       tags, dimension_scores, image_path, thumbnail_path,
	       is_public, is_bookmarked, created_at, record_time
	FROM entries`

func scanEntries(rows *sql.Rows) ([]models.FeedEntry, error) {
	var entries []models.FeedEntry
	for rows.Next() {
		var e models.FeedEntry
		var meta, tags, scores, imagePath, thumbPath, recordTime sql.NullString
		var correlationID sql.NullString
		var isPublic, isBookmarked int
		var created string

		err := rows.Scan(
			&e.ID, &correlationID, &e.Category, &e.RawContent, &meta,
			&e.AIInsight, &tags, &scores, &imagePath, &thumbPath,
			&isPublic, &isBookmarked, &created, &recordTime,
		)
		if err != nil {
			return nil, err
		}

		e.CorrelationID = correlationID.String
		e.ImagePath = imagePath.String
		e.ThumbnailPath = thumbPath.String
		e.IsPublic = isPublic != 0
		e.IsBookmarked = isBookmarked != 0

		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.MetaData); err != nil {
				slog.Warn("cache: malformed meta_data, skipping", "id", e.ID, "err", err)
			}
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
				slog.Warn("cache: malformed tags, skipping", "id", e.ID, "err", err)
			}
		}
		if scores.Valid && scores.String != "" {
			if err := json.Unmarshal([]byte(scores.String), &e.DimensionScores); err != nil {
				slog.Warn("cache: malformed dimension_scores, skipping", "id", e.ID, "err", err)
			}
		}

		e.CreatedAt, err = time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("cache: parse created_at for %s: %w", e.ID, err)
		}
		if recordTime.Valid && recordTime.String != "" {
			if t, err := time.Parse(time.RFC3339, recordTime.String); err == nil {
				e.RecordTime = &t
			}
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// marshalOrNull marshals v to a JSON string, or nil when v is empty.
func marshalOrNull(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]float64:
		if len(t) == 0 {
			return nil, nil
		}
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
