package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-ports/vibelog/internal/models"
)

// SendMessage posts a chat message to the non-streaming endpoint and returns
// the assistant's full reply.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (string, error) {
	body := map[string]any{"content": content}
	if conversationID != "" {
		body["conversation_id"] = conversationID
	}

	var resp struct {
		Content string `json:"content"`
	}
	if err := c.doJSON(ctx, c.client, http.MethodPost, "/api/chat/message", body, &resp); err != nil {
		return "", fmt.Errorf("api: send message: %w", err)
	}
	return resp.Content, nil
}

// StreamMessage posts a chat message to the streaming endpoint and returns
// the long-lived response body carrying line-prefixed payloads. The caller
// owns decoding and must close the body. Non-2xx responses are converted to
// a *StatusError before any body is handed out.
func (c *Client) StreamMessage(ctx context.Context, conversationID, content string) (io.ReadCloser, error) {
	body := map[string]any{"content": content}
	if conversationID != "" {
		body["conversation_id"] = conversationID
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.BaseURL+"/api/chat/stream", body)
	if err != nil {
		return nil, fmt.Errorf("api: stream message: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setAuth(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: stream message: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("api: stream message: %w", readStatusError(resp))
	}
	return resp.Body, nil
}

// Conversations lists the user's chat conversations.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.doJSON(ctx, c.client, http.MethodGet, "/api/chat/conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("api: list conversations: %w", err)
	}
	return out, nil
}

// ConversationDetail is one conversation with its full transcript.
type ConversationDetail struct {
	Conversation models.Conversation `json:"conversation"`
	Messages     []models.Message    `json:"messages"`
}

// Conversation fetches one conversation and its messages.
func (c *Client) Conversation(ctx context.Context, id string) (*ConversationDetail, error) {
	var out ConversationDetail
	if err := c.doJSON(ctx, c.client, http.MethodGet, "/api/chat/conversations/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("api: get conversation: %w", err)
	}
	return &out, nil
}

// CreateConversation creates an empty conversation with the given title.
func (c *Client) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	body := map[string]any{"title": title}
	var out models.Conversation
	if err := c.doJSON(ctx, c.client, http.MethodPost, "/api/chat/conversations", body, &out); err != nil {
		return nil, fmt.Errorf("api: create conversation: %w", err)
	}
	return &out, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, c.client, http.MethodDelete, "/api/chat/conversations/"+id, nil, nil); err != nil {
		return fmt.Errorf("api: delete conversation: %w", err)
	}
	return nil
}
