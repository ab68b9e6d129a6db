package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/schema"

	"github.com/liwenzhu/kali-chat/internal/model/chat"
	"github.com/liwenzhu/kali-chat/internal/session"
	"github.com/liwenzhu/kali-chat/internal/store"
)

var ErrEmptyMessage = errors.New("message is required")

// Responder generates model replies from stored history plus the current query.
type Responder interface {
	GenerateResponse(ctx context.Context, history []chat.Message, query string) (*schema.Message, error)
	StreamResponse(ctx context.Context, history []chat.Message, query string) (*schema.StreamReader[*schema.Message], error)
}

// Summarizer condenses a transcript into a bounded summary.
type Summarizer interface {
	Generate(ctx context.Context, messages []chat.Message) (string, error)
}

// Service sequences a chat turn: session resolution, persistence, model
// invocation and conditional summarization.
type Service struct {
	store          *store.Store
	sessions       *session.Manager
	responder      Responder
	summarizer     Summarizer
	maxContext     int
	summaryTrigger int
}

// NewService wires the turn pipeline.
func NewService(st *store.Store, sessions *session.Manager, responder Responder, summarizer Summarizer, maxContext, summaryTrigger int) *Service {
	return &Service{
		store:          st,
		sessions:       sessions,
		responder:      responder,
		summarizer:     summarizer,
		maxContext:     maxContext,
		summaryTrigger: summaryTrigger,
	}
}

// Resolve maps an optional client-supplied session id onto a live session.
func (s *Service) Resolve(ctx context.Context, sessionID string) (string, error) {
	return s.ResolveWith(ctx, sessionID, nil)
}

// ResolveWith additionally honors a per-request persistence override for
// newly minted sessions; nil keeps the configured default.
func (s *Service) ResolveWith(ctx context.Context, sessionID string, persistent *bool) (string, error) {
	return s.sessions.GetOrCreateWith(ctx, sessionID, persistent)
}

// Respond runs a full non-streaming turn and returns the reply plus the
// number of messages sent to the model.
func (s *Service) Respond(ctx context.Context, sessionID, message string) (string, int, error) {
	if message == "" {
		return "", 0, ErrEmptyMessage
	}

	// History is captured before the new message is stored; the current
	// query reaches the model once, through the template's query slot.
	history, err := s.store.Messages(ctx, sessionID, s.maxContext)
	if err != nil {
		return "", 0, err
	}

	if err := s.store.AddMessage(ctx, sessionID, chat.RoleUser, message); err != nil {
		return "", 0, err
	}

	response, err := s.responder.GenerateResponse(ctx, history, message)
	if err != nil {
		return "", 0, err
	}

	if err := s.store.AddMessage(ctx, sessionID, chat.RoleAssistant, response.Content); err != nil {
		return "", 0, err
	}

	s.maybeSummarize(ctx, sessionID)

	// System prompt and current query ride alongside the stored history.
	return response.Content, len(history) + 2, nil
}

// StreamRespond runs a streaming turn, invoking onChunk for every content
// fragment, and returns the accumulated reply once the stream is drained.
func (s *Service) StreamRespond(ctx context.Context, sessionID, message string, onChunk func(string) error) (string, error) {
	if message == "" {
		return "", ErrEmptyMessage
	}

	history, err := s.store.Messages(ctx, sessionID, s.maxContext)
	if err != nil {
		return "", err
	}

	if err := s.store.AddMessage(ctx, sessionID, chat.RoleUser, message); err != nil {
		return "", err
	}

	stream, err := s.responder.StreamResponse(ctx, history, message)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		if err := onChunk(chunk.Content); err != nil {
			return "", err
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("failed to assemble streamed reply: %w", err)
	}

	if err := s.store.AddMessage(ctx, sessionID, chat.RoleAssistant, response.Content); err != nil {
		return "", err
	}

	s.maybeSummarize(ctx, sessionID)
	return response.Content, nil
}

// History returns the recent transcript and summary for a session.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]chat.Message, string, error) {
	if !s.sessions.Validate(ctx, sessionID) {
		return nil, "", store.ErrSessionNotFound
	}

	messages, err := s.store.Messages(ctx, sessionID, limit)
	if err != nil {
		return nil, "", err
	}

	summary, err := s.store.Summary(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return nil, "", err
	}

	return messages, summary, nil
}

// maybeSummarize refreshes the stored summary every summaryTrigger messages
// on persistent sessions. Failures are logged, never surfaced to the turn.
func (s *Service) maybeSummarize(ctx context.Context, sessionID string) {
	if s.summarizer == nil || s.summaryTrigger <= 0 {
		return
	}
	if !s.sessions.IsPersistent(ctx, sessionID) {
		return
	}

	count, err := s.store.MessageCount(ctx, sessionID)
	if err != nil {
		log.Printf("[chat] message count failed for %s: %v", sessionID, err)
		return
	}
	if count == 0 || count%s.summaryTrigger != 0 {
		return
	}

	messages, err := s.store.Messages(ctx, sessionID, s.maxContext)
	if err != nil {
		log.Printf("[chat] transcript load failed for %s: %v", sessionID, err)
		return
	}

	summary, err := s.summarizer.Generate(ctx, messages)
	if err != nil {
		log.Printf("[chat] summarization failed for %s: %v", sessionID, err)
		return
	}

	if err := s.store.SaveSummary(ctx, sessionID, summary); err != nil {
		log.Printf("[chat] summary save failed for %s: %v", sessionID, err)
	}
}
