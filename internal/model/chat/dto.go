package chat

import "time"

// ChatRequest 聊天请求载荷。
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse 非流式聊天响应。
type ChatResponse struct {
	Response      string    `json:"response"`
	SessionID     string    `json:"session_id"`
	ContextLength int       `json:"context_length"`
	Timestamp     time.Time `json:"timestamp"`
}

// MessageHistory is the /history payload.
type MessageHistory struct {
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    int    `json:"code"`
}
