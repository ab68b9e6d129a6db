package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	model "github.com/liwenzhu/kali-chat/internal/model/chat"
	chatService "github.com/liwenzhu/kali-chat/internal/service/chat"
	"github.com/liwenzhu/kali-chat/internal/store"
	"github.com/liwenzhu/kali-chat/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	store        *store.Store
	historyLimit int
	llmReady     bool
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, st *store.Store, historyLimit int, llmReady bool) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		store:        st,
		historyLimit: historyLimit,
		llmReady:     llmReady,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/history/{sessionID}", h.handleHistory)
	r.Get("/health", h.handleHealth)
}

// handleChat 处理非流式聊天请求
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	persistent, err := utils.QueryBool(r, "persistent")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID, err := h.chatSvc.ResolveWith(r.Context(), payload.SessionID, persistent)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reply, contextLength, err := h.chatSvc.Respond(r.Context(), sessionID, payload.Message)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, model.ChatResponse{
		Response:      reply,
		SessionID:     sessionID,
		ContextLength: contextLength,
		Timestamp:     time.Now().UTC(),
	})
}

// handleHistory 返回会话的最近消息和摘要
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, summary, err := h.chatSvc.History(r.Context(), sessionID, h.historyLimit)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusBadRequest, "session expired or does not exist")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	utils.RespondJSON(w, http.StatusOK, model.MessageHistory{
		Messages: messages,
		Summary:  summary,
	})
}

// handleHealth 服务健康检查
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"database": "ok",
		"sessions": "ok",
		"llm":      "ok",
	}
	status := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		services["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if !h.llmReady {
		services["llm"] = "not configured"
		status = http.StatusServiceUnavailable
	}

	utils.RespondJSON(w, status, map[string]any{
		"status":    statusWord(status),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}
