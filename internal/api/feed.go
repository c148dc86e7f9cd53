package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-ports/vibelog/internal/models"
)

// SubmitRequest is a feed submission. CorrelationID is the client-generated
// id carried through the round trip so the response can be matched back to
// its optimistic placeholder.
type SubmitRequest struct {
	Text          string
	ImagePath     string
	ClientTime    time.Time
	CorrelationID string
}

// FeedHistory fetches the most recent feed entries, newest first.
func (c *Client) FeedHistory(ctx context.Context, limit int) ([]*models.FeedEntry, error) {
	var entries []*models.FeedEntry
	path := "/api/feed/history?limit=" + strconv.Itoa(limit)
	if err := c.doJSON(ctx, c.client, http.MethodGet, path, nil, &entries); err != nil {
		return nil, fmt.Errorf("api: feed history: %w", err)
	}
	return entries, nil
}

// SubmitEntry posts a new entry as a multipart form and returns the
// authoritative record. The call is bounded by SubmitTimeout; on expiry the
// returned error wraps ErrTimeout so callers can surface a dedicated
// timed-out message.
func (c *Client) SubmitEntry(ctx context.Context, sub SubmitRequest) (*models.FeedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.SubmitTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeSubmitForm(mw, sub); err != nil {
		return nil, fmt.Errorf("api: submit entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/feed", &buf)
	if err != nil {
		return nil, fmt.Errorf("api: submit entry: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("api: submit entry: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("api: submit entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("api: submit entry: %w", readStatusError(resp))
	}

	var entry models.FeedEntry
	if err := decodeJSONBody(resp.Body, &entry); err != nil {
		return nil, fmt.Errorf("api: submit entry: %w", err)
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = sub.CorrelationID
	}
	return &entry, nil
}

// writeSubmitForm fills the multipart form: text, client_time, client_ref,
// and the optional image file. The writer is closed on success.
func writeSubmitForm(mw *multipart.Writer, sub SubmitRequest) error {
	if err := mw.WriteField("text", sub.Text); err != nil {
		return err
	}
	clientTime := sub.ClientTime
	if clientTime.IsZero() {
		clientTime = time.Now().UTC()
	}
	if err := mw.WriteField("client_time", clientTime.Format(time.RFC3339)); err != nil {
		return err
	}
	if sub.CorrelationID != "" {
		if err := mw.WriteField("client_ref", sub.CorrelationID); err != nil {
			return err
		}
	}

	if sub.ImagePath != "" {
		f, err := os.Open(sub.ImagePath)
		if err != nil {
			return err
		}
		defer f.Close()

		part, err := mw.CreateFormFile("image", filepath.Base(sub.ImagePath))
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f); err != nil {
			return err
		}
	}

	return mw.Close()
}

// UpdateEntry patches fields of an existing entry and returns the updated
// record subset.
func (c *Client) UpdateEntry(ctx context.Context, id string, fields map[string]any) (*models.FeedEntry, error) {
	var entry models.FeedEntry
	if err := c.doJSON(ctx, c.client, http.MethodPatch, "/api/feed/"+id, fields, &entry); err != nil {
		return nil, fmt.Errorf("api: update entry: %w", err)
	}
	return &entry, nil
}

// SetBookmark toggles the bookmark flag and returns the new state.
func (c *Client) SetBookmark(ctx context.Context, id string, on bool) (bool, error) {
	var resp struct {
		IsBookmarked bool `json:"is_bookmarked"`
	}
	body := map[string]any{"is_bookmarked": on}
	if err := c.doJSON(ctx, c.client, http.MethodPatch, "/api/feed/"+id+"/bookmark", body, &resp); err != nil {
		return false, fmt.Errorf("api: set bookmark: %w", err)
	}
	return resp.IsBookmarked, nil
}

// decodeJSONBody decodes r into out.
func decodeJSONBody(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
