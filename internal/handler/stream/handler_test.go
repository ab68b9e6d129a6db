package stream_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	streamHandler "github.com/liwenzhu/kali-chat/internal/handler/stream"
	model "github.com/liwenzhu/kali-chat/internal/model/chat"
	chatservice "github.com/liwenzhu/kali-chat/internal/service/chat"
	"github.com/liwenzhu/kali-chat/internal/session"
	"github.com/liwenzhu/kali-chat/internal/store"
)

type chunkResponder struct {
	chunks []string
	fail   bool
}

func (c *chunkResponder) GenerateResponse(_ context.Context, _ []model.Message, _ string) (*schema.Message, error) {
	if c.fail {
		return nil, errors.New("model unavailable")
	}
	return schema.AssistantMessage(strings.Join(c.chunks, ""), nil), nil
}

func (c *chunkResponder) StreamResponse(_ context.Context, _ []model.Message, _ string) (*schema.StreamReader[*schema.Message], error) {
	if c.fail {
		return nil, errors.New("model unavailable")
	}
	msgs := make([]*schema.Message, 0, len(c.chunks))
	for _, chunk := range c.chunks {
		msgs = append(msgs, schema.AssistantMessage(chunk, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func newHandler(t *testing.T, responder chatservice.Responder) *streamHandler.Handler {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "chat.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sessions, err := session.NewManager(filepath.Join(dir, "sessions"), time.Hour, st, true)
	if err != nil {
		t.Fatalf("NewManager err: %v", err)
	}

	return streamHandler.New(chatservice.NewService(st, sessions, responder, nil, 40, 0))
}

func TestStreamFraming(t *testing.T) {
	h := newHandler(t, &chunkResponder{chunks: []string{"Hello", " there"}})

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "", "hi", nil); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: session\n") {
		t.Fatalf("session event must come first, got: %q", body)
	}
	for _, want := range []string{
		"data: Hello\n\n",
		"data:  there\n\n",
		"data: [DONE]\n\n",
		"event: end\ndata: [DONE]\n\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in body: %q", want, body)
		}
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", got)
	}
}

func TestStreamSessionEventPrecedesContent(t *testing.T) {
	h := newHandler(t, &chunkResponder{chunks: []string{"Hello"}})

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "", "hi", nil); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	body := rec.Body.String()
	sessionAt := strings.Index(body, "event: session")
	contentAt := strings.Index(body, "data: Hello")
	if sessionAt < 0 || contentAt < 0 || sessionAt > contentAt {
		t.Fatalf("session event must precede content: %q", body)
	}
}

func TestStreamErrorShape(t *testing.T) {
	h := newHandler(t, &chunkResponder{fail: true})

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "", "hi", nil); err == nil {
		t.Fatal("expected an error")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "data: ⚠️ ") {
		t.Fatalf("readable error fragment missing: %q", body)
	}
	if !strings.Contains(body, "event: error\ndata: [ERROR]\n\n") {
		t.Fatalf("terminal error event missing: %q", body)
	}
	if strings.Contains(body, "event: end") {
		t.Fatalf("failed stream must not emit the end event: %q", body)
	}
}
