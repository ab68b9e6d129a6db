package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	chatService "github.com/liwenzhu/kali-chat/internal/service/chat"
	"github.com/liwenzhu/kali-chat/pkg/utils"
)

// Stream-level sentinels. DONE terminates the data stream before the end
// event; ERROR accompanies the error event.
const (
	doneSentinel  = "[DONE]"
	errorSentinel = "[ERROR]"
)

// Handler manages streaming chat replies via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// HandleStreamRequest streams one chat turn. The session identifier is
// announced as the first event so fresh clients can skip the discovery
// round trip; content fragments follow as plain data lines. persistent
// overrides the default persistence of a freshly minted session.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string, persistent *bool) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	resolved, err := h.chatSvc.ResolveWith(ctx, sessionID, persistent)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("failed to resolve session: %v", err))
		return err
	}

	utils.SendSSEEvent(w, flusher, "session", resolved)

	_, err = h.chatSvc.StreamRespond(ctx, resolved, userMessage, func(fragment string) error {
		utils.SendSSEData(w, flusher, fragment)
		return nil
	})
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("generation failed: %v", err))
		return err
	}

	utils.SendSSEData(w, flusher, doneSentinel)
	utils.SendSSEEvent(w, flusher, "end", doneSentinel)

	log.Printf("[stream] completed response for session=%s", resolved)
	return nil
}

// sendError surfaces a readable fragment before the terminal error event.
func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	utils.SendSSEData(w, flusher, "⚠️ "+errorMsg)
	utils.SendSSEEvent(w, flusher, "error", errorSentinel)
}
