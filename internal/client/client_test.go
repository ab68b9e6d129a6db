package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func streamServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
}

func TestStreamMessageAccumulatesFragments(t *testing.T) {
	srv := streamServer(t, "data: Hello", "data: world", "data: [DONE]", "event: end")
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	var sink strings.Builder

	turn, err := c.StreamMessage(context.Background(), "hi", "", &sink)
	if err != nil {
		t.Fatalf("StreamMessage err: %v", err)
	}
	if turn.Reply != "Hello world" {
		t.Fatalf("unexpected reply: %q", turn.Reply)
	}
	if sink.String() != "Hello world\n" {
		t.Fatalf("unexpected display: %q", sink.String())
	}
}

func TestStreamMessageWithoutSpacing(t *testing.T) {
	srv := streamServer(t, "data: Hel", "data: lo", "event: end")
	defer srv.Close()

	c := New(srv.URL, srv.Client(), false)
	var sink strings.Builder

	turn, err := c.StreamMessage(context.Background(), "hi", "", &sink)
	if err != nil {
		t.Fatalf("StreamMessage err: %v", err)
	}
	if turn.Reply != "Hello" {
		t.Fatalf("unexpected reply: %q", turn.Reply)
	}
}

func TestStreamMessagePercentEncoding(t *testing.T) {
	message := `hello world & "quotes" + smeg`
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("message")
		fmt.Fprint(w, "data: ok\n\nevent: end\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	if _, err := c.StreamMessage(context.Background(), message, "", &strings.Builder{}); err != nil {
		t.Fatalf("StreamMessage err: %v", err)
	}
	if got != message {
		t.Fatalf("message did not round-trip: got %q want %q", got, message)
	}
}

func TestStreamMessageSendsStoredSession(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("session_id")
		fmt.Fprint(w, "data: ok\n\nevent: end\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	if _, err := c.StreamMessage(context.Background(), "hi", "abc-123", &strings.Builder{}); err != nil {
		t.Fatalf("StreamMessage err: %v", err)
	}
	if got != "abc-123" {
		t.Fatalf("unexpected session id: %q", got)
	}
}

func TestStreamMessageOmitsEmptySession(t *testing.T) {
	var hadParam bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadParam = r.URL.Query()["session_id"]
		fmt.Fprint(w, "event: end\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	if _, err := c.StreamMessage(context.Background(), "hi", "", &strings.Builder{}); err != nil {
		t.Fatalf("StreamMessage err: %v", err)
	}
	if hadParam {
		t.Fatal("session_id must be omitted when no session exists")
	}
}

func TestStreamMessageInlineSessionEvent(t *testing.T) {
	srv := streamServer(t, "event: session", "data: sess-42", "data: Hello", "event: end")
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	var sink strings.Builder

	turn, err := c.StreamMessage(context.Background(), "hi", "", &sink)
	if err != nil {
		t.Fatalf("StreamMessage err: %v", err)
	}
	if turn.SessionID != "sess-42" {
		t.Fatalf("unexpected session id: %q", turn.SessionID)
	}
	// The announced id is consumed, not rendered as content.
	if turn.Reply != "Hello" {
		t.Fatalf("unexpected reply: %q", turn.Reply)
	}
}

func TestStreamMessageErrorEvent(t *testing.T) {
	srv := streamServer(t, "data: partial", "event: error", "data: after-error")
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	var sink strings.Builder

	_, err := c.StreamMessage(context.Background(), "hi", "", &sink)
	if !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("expected ErrTurnFailed, got %v", err)
	}
	if strings.Contains(sink.String(), "after-error") {
		t.Fatal("lines after the error event must not be read as content")
	}
}

func TestStreamMessageBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	if _, err := c.StreamMessage(context.Background(), "hi", "", &strings.Builder{}); !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("expected ErrTurnFailed, got %v", err)
	}
}

func TestStreamMessageTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, &http.Client{}, true)
	if _, err := c.StreamMessage(context.Background(), "hi", "", &strings.Builder{}); !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("expected ErrTurnFailed, got %v", err)
	}
}

func TestStreamMessageCleanCloseEndsTurn(t *testing.T) {
	srv := streamServer(t, "data: partial")
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	var sink strings.Builder

	turn, err := c.StreamMessage(context.Background(), "hi", "", &sink)
	if err != nil {
		t.Fatalf("StreamMessage err: %v", err)
	}
	if turn.Reply != "partial" {
		t.Fatalf("unexpected reply: %q", turn.Reply)
	}
}

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"response":"hi","session_id":"sess-7"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	id, err := c.CreateSession(context.Background(), "hello")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if id != "sess-7" {
		t.Fatalf("unexpected session id: %q", id)
	}
}

func TestCreateSessionMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":"hi"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), true)
	if _, err := c.CreateSession(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when service returns no session id")
	}
}
