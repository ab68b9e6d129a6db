package stream

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/liwenzhu/kali-chat/pkg/utils"
)

// wsInbound is one client frame: a single user message.
type wsInbound struct {
	Message string `json:"message"`
}

// wsOutbound mirrors the SSE framing over a socket: session, delta, end, error.
type wsOutbound struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleWebSocket serves a bidirectional chat connection carrying the same
// turn semantics as the SSE endpoint. Turns stay strictly sequential: one
// inbound frame is fully answered before the next is read.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	persistent, err := utils.QueryBool(r, "persistent")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	for {
		var inbound wsInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}
		if inbound.Message == "" {
			continue
		}

		resolved, err := h.chatSvc.ResolveWith(ctx, sessionID, persistent)
		if err != nil {
			h.writeWSError(conn, err.Error())
			continue
		}
		sessionID = resolved

		if err := conn.WriteJSON(wsOutbound{Event: "session", SessionID: resolved}); err != nil {
			log.Printf("[ws] write failed: %v", err)
			return
		}

		_, err = h.chatSvc.StreamRespond(ctx, resolved, inbound.Message, func(fragment string) error {
			return conn.WriteJSON(wsOutbound{Event: "delta", SessionID: resolved, Content: fragment})
		})
		if err != nil {
			h.writeWSError(conn, err.Error())
			continue
		}

		if err := conn.WriteJSON(wsOutbound{Event: "end", SessionID: resolved}); err != nil {
			log.Printf("[ws] write failed: %v", err)
			return
		}
	}
}

func (h *Handler) writeWSError(conn *websocket.Conn, msg string) {
	if err := conn.WriteJSON(wsOutbound{Event: "error", Error: msg}); err != nil {
		log.Printf("[ws] error write failed: %v", err)
	}
}
