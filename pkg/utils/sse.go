package utils

import (
	"fmt"
	"net/http"
)

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// SendSSEData writes one plain-text data line and flushes it.
func SendSSEData(w http.ResponseWriter, flusher http.Flusher, text string) {
	fmt.Fprintf(w, "data: %s\n\n", text)
	flusher.Flush()
}

// SendSSEEvent writes a named event with its data line and flushes it.
func SendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
