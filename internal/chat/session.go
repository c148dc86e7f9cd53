package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-ports/vibelog/internal/api"
	"github.com/go-ports/vibelog/internal/models"
)

// FallbackNotice is finalised as the assistant turn when a stream completes
// without producing any content, so the turn is never silently absent.
const FallbackNotice = "no content returned, please retry"

// ErrStreamActive is returned when a send is attempted while a prior stream
// for the same session is still running.
var ErrStreamActive = errors.New("chat: a stream is already active for this session")

// ErrNothingToRetry is returned by RetryLast when the transcript holds no
// user message to resend.
var ErrNothingToRetry = errors.New("chat: no user message to retry")

// Streamer opens a streaming response body for a chat message. The api
// client satisfies this; tests substitute fakes.
type Streamer interface {
	StreamMessage(ctx context.Context, conversationID, content string) (io.ReadCloser, error)
}

// Session is a per-conversation message list fed by the incremental stream
// decoder. Only one stream may be active at a time; the user's message is
// appended before the network call starts, so transcript order is always
// request-then-response.
type Session struct {
	client Streamer

	mu             sync.Mutex
	conversationID string
	title          string
	messages       []models.Message
	accum          strings.Builder
	streaming      bool
	lastTurnFailed bool

	onDelta        func(fragment string)
	onConversation func(id, title string, isNew bool)
}

// NewSession creates a session for conversationID. Pass "" to let the
// backend assign a new conversation id via the first stream metadata event.
func NewSession(client Streamer, conversationID string) *Session {
	return &Session{client: client, conversationID: conversationID}
}

// OnDelta registers a callback fired for each incremental text fragment,
// letting the caller render the growing assistant message live.
func (s *Session) OnDelta(fn func(fragment string)) { s.onDelta = fn }

// OnConversation registers a callback fired once per stream when the backend
// signals conversation metadata. isNew is true when the backend created the
// conversation for this stream.
func (s *Session) OnConversation(fn func(id, title string, isNew bool)) { s.onConversation = fn }

// ConversationID returns the current conversation id ("" until assigned).
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Title returns the conversation title, if the backend supplied one.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Messages returns a copy of the finalised transcript. The in-progress
// accumulator is never part of it.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Streaming reports whether a stream is currently active.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Send appends content as a user message and streams the assistant reply
// into the transcript. Transport failures and non-success statuses are
// converted into a finalised assistant message describing the failure, never
// returned as errors; the only error returns are an empty message and
// ErrStreamActive while a prior stream is running.
func (s *Session) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("chat: empty message")
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return ErrStreamActive
	}
	s.streaming = true
	s.messages = append(s.messages, models.NewMessage(models.RoleUser, content))
	conversationID := s.conversationID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
	}()

	body, err := s.client.StreamMessage(ctx, conversationID, content)
	if err != nil {
		s.finishFailed(failureMessage(err))
		return nil
	}
	defer body.Close()

	if err := s.readStream(body); err != nil {
		s.finishFailed(failureMessage(err))
		return nil
	}

	s.finishStream()
	return nil
}

// readStream decodes the response body line by line, applying events to the
// session. It returns an error only for transport failures; a done event or
// EOF ends the stream normally.
func (s *Session) readStream(body io.Reader) error {
	var dec LineDecoder
	metaApplied := false
	buf := make([]byte, 2048)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range dec.Lines(string(buf[:n])) {
				if done := s.applyLine(line, &metaApplied); done {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}

	// The stream may end without a final newline; the remainder is still a
	// complete line by then.
	if rest := dec.Flush(); rest != "" {
		s.applyLine(rest, &metaApplied)
	}
	return nil
}

// applyLine decodes and applies a single line. It reports true when the line
// carried a completion event, which stops processing of subsequent lines.
func (s *Session) applyLine(line string, metaApplied *bool) bool {
	ev, ok := DecodeLine(line)
	if !ok {
		return false
	}

	switch ev.Kind {
	case EventMeta:
		if *metaApplied {
			return false
		}
		*metaApplied = true
		s.mu.Lock()
		s.conversationID = ev.ConversationID
		if ev.Title != "" {
			s.title = ev.Title
		}
		fn := s.onConversation
		s.mu.Unlock()
		if fn != nil {
			fn(ev.ConversationID, ev.Title, ev.IsNew)
		}
	case EventDelta:
		s.mu.Lock()
		s.accum.WriteString(ev.Content)
		fn := s.onDelta
		s.mu.Unlock()
		if fn != nil {
			fn(ev.Content)
		}
	case EventDone:
		return true
	}
	return false
}

// finishStream flushes the accumulator into a finalised assistant message,
// substituting the fallback notice when the server produced nothing.
func (s *Session) finishStream() {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.accum.String()
	s.accum.Reset()
	if text == "" {
		s.messages = append(s.messages, models.NewMessage(models.RoleAssistant, FallbackNotice))
		s.lastTurnFailed = true
		return
	}
	s.messages = append(s.messages, models.NewMessage(models.RoleAssistant, text))
	s.lastTurnFailed = false
}

// finishFailed discards the accumulator and finalises an assistant message
// describing the failure, so the user's turn is never lost.
func (s *Session) finishFailed(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accum.Reset()
	s.messages = append(s.messages, models.NewMessage(models.RoleAssistant, text))
	s.lastTurnFailed = true
}

// RetryLast resends the content of the last user message. When the previous
// turn failed, the trailing assistant error message and its user message are
// removed first, producing a clean single retry turn instead of an
// accumulating error trail.
func (s *Session) RetryLast(ctx context.Context) error {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return ErrStreamActive
	}

	content := ""
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleUser {
			content = s.messages[i].Content
			break
		}
	}
	if content == "" {
		s.mu.Unlock()
		return ErrNothingToRetry
	}

	if n := len(s.messages); s.lastTurnFailed && n >= 2 &&
		s.messages[n-1].Role == models.RoleAssistant &&
		s.messages[n-2].Role == models.RoleUser {
		s.messages = s.messages[:n-2]
	}
	s.mu.Unlock()

	return s.Send(ctx, content)
}

// failureMessage renders a transport failure as user-facing assistant text,
// distinguishing a non-success HTTP status from a connection error.
func failureMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Detail != "" {
			return fmt.Sprintf("The assistant request was rejected (HTTP %d: %s). Please retry.",
				statusErr.Code, statusErr.Detail)
		}
		return fmt.Sprintf("The assistant request was rejected (HTTP %d). Please retry.", statusErr.Code)
	}
	return "Could not reach the assistant (connection error). Please retry."
}
