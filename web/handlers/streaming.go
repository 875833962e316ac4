package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// SSE event types emitted by /debate/stream.
const (
	eventTurnComplete   = "turn_complete"
	eventDebateComplete = "debate_complete"
	eventError          = "error"
)

type streamTurn struct {
	Seq     int64  `json:"seq"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type streamError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// handleDebateStream runs a debate and streams each reply as a Server-Sent Event.
// Failures after the stream opens are reported as an error event.
func (h *Handler) handleDebateStream(w http.ResponseWriter, r *http.Request) {
	var req core.DebateRequest
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		h.jsonError(w, "session_id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		h.jsonError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Debug("New debate stream", "session_id", req.SessionID, "remote_addr", r.RemoteAddr)

	transcript, err := h.engine.RunDebate(r.Context(), req, func(turn *core.Turn, entry core.TranscriptEntry) {
		h.sendSSEEvent(w, flusher, eventTurnComplete, streamTurn{Seq: turn.Seq, Speaker: entry.Speaker, Text: entry.Text})
	})
	if err != nil {
		if r.Context().Err() != nil {
			slog.Debug("Debate stream closed by client", "session_id", req.SessionID)
			return
		}
		code, message := classifyError(err)
		h.sendSSEEvent(w, flusher, eventError, streamError{Status: code, Message: message})
		return
	}

	h.sendSSEEvent(w, flusher, eventDebateComplete, debateResponse{SessionID: req.SessionID, Transcript: transcript})
}

// sendSSEEvent sends a server-sent event.
func (h *Handler) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		slog.Error("Failed to write SSE event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		slog.Error("Failed to write SSE data", "error", err)
		return
	}
	flusher.Flush()
}
