package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/liwenzhu/kali-chat/internal/handler/chat"
	streamHandler "github.com/liwenzhu/kali-chat/internal/handler/stream"
	middlewarePkg "github.com/liwenzhu/kali-chat/internal/middleware"
	chatService "github.com/liwenzhu/kali-chat/internal/service/chat"
	"github.com/liwenzhu/kali-chat/internal/store"
	"github.com/liwenzhu/kali-chat/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, st *store.Store, historyLimit int, llmReady bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatH := chatHandler.New(chatSvc, st, historyLimit, llmReady)
	streamH := streamHandler.New(chatSvc)

	chatH.RegisterRoutes(r)

	r.Get("/chat/stream", func(w http.ResponseWriter, req *http.Request) {
		userMessage := req.URL.Query().Get("message")
		sessionID := req.URL.Query().Get("session_id")

		if userMessage == "" {
			utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
			return
		}

		persistent, err := utils.QueryBool(req, "persistent")
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := streamH.HandleStreamRequest(req.Context(), w, sessionID, userMessage, persistent); err != nil {
			log.Printf("[stream] error handling request: %v", err)
		}
	})

	r.Get("/chat/ws", streamH.HandleWebSocket)

	return r
}
