package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/liwenzhu/kali-chat/internal/model/chat"
	"github.com/liwenzhu/kali-chat/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAddMessageCreatesSessionOnDemand(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	if err := st.AddMessage(ctx, sessionID, chat.RoleUser, "hello"); err != nil {
		t.Fatalf("AddMessage err: %v", err)
	}

	ok, err := st.HasSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("HasSession err: %v", err)
	}
	if !ok {
		t.Fatal("expected session row to exist")
	}
}

func TestMessagesChronologicalWithLimit(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	for _, content := range []string{"one", "two", "three"} {
		if err := st.AddMessage(ctx, sessionID, chat.RoleUser, content); err != nil {
			t.Fatalf("AddMessage err: %v", err)
		}
	}

	messages, err := st.Messages(ctx, sessionID, 2)
	if err != nil {
		t.Fatalf("Messages err: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "two" || messages[1].Content != "three" {
		t.Fatalf("unexpected order: %q, %q", messages[0].Content, messages[1].Content)
	}
}

func TestMessageCount(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	if err := st.AddMessage(ctx, sessionID, chat.RoleUser, "hi"); err != nil {
		t.Fatalf("AddMessage err: %v", err)
	}
	if err := st.AddMessage(ctx, sessionID, chat.RoleAssistant, "hello"); err != nil {
		t.Fatalf("AddMessage err: %v", err)
	}

	count, err := st.MessageCount(ctx, sessionID)
	if err != nil {
		t.Fatalf("MessageCount err: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 messages, got %d", count)
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	if err := st.CreateSession(ctx, sessionID, true); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if err := st.SaveSummary(ctx, sessionID, "- key point"); err != nil {
		t.Fatalf("SaveSummary err: %v", err)
	}

	summary, err := st.Summary(ctx, sessionID)
	if err != nil {
		t.Fatalf("Summary err: %v", err)
	}
	if summary != "- key point" {
		t.Fatalf("unexpected summary: %q", summary)
	}
}

func TestSaveSummaryUnknownSession(t *testing.T) {
	st := openStore(t)

	err := st.SaveSummary(context.Background(), uuid.NewString(), "anything")
	if !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestIsPersistent(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	persistentID := uuid.NewString()
	if err := st.CreateSession(ctx, persistentID, true); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	ephemeralID := uuid.NewString()
	if err := st.CreateSession(ctx, ephemeralID, false); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	if got, _ := st.IsPersistent(ctx, persistentID); !got {
		t.Fatal("expected persistent session")
	}
	if got, _ := st.IsPersistent(ctx, ephemeralID); got {
		t.Fatal("expected ephemeral session")
	}
	if got, _ := st.IsPersistent(ctx, uuid.NewString()); got {
		t.Fatal("missing session must not be persistent")
	}
}
