// ABOUTME: HTTP API handlers for streaming completions over SSE and managing history
// ABOUTME: POST /api/completion streams; GET and DELETE /api/messages read and reset the cache

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/chat-relay/internal/completion"
	"github.com/2389/chat-relay/internal/session"
	"github.com/2389/chat-relay/internal/store"
	"github.com/2389/chat-relay/internal/transcode"
	"github.com/2389/chat-relay/internal/upstream"
)

// MessagesResponse is the JSON response for GET /api/messages.
type MessagesResponse struct {
	Messages []store.Message `json:"messages"`
}

// handleCompletion handles POST /api/completion.
// The reply streams as SSE frames of {"response","done"}.
func (g *Gateway) handleCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := session.FromContext(r.Context())
	if sessionID == "" {
		g.sendJSONError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	req, err := g.requests.parse(w, r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before contacting anything (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	stream := newSSEWriter(w, flusher)
	_, err = g.completion.Complete(r.Context(), completion.Request{
		SessionKey: sessionID,
		Message:    req.Message,
	}, stream.Emit)
	if err == nil || errors.Is(err, completion.ErrClientAborted) {
		return
	}

	status, message := classifyError(err)
	if !stream.Started() {
		g.sendJSONError(w, status, message)
		return
	}
	stream.Error(message)
}

// classifyError maps a completion failure to an HTTP status and a message
// safe to show the client.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, completion.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "conversation store unavailable"
	case errors.Is(err, upstream.ErrUpstreamRejected):
		return http.StatusBadGateway, "upstream rejected request"
	case errors.Is(err, transcode.ErrTranscode):
		return http.StatusBadGateway, "upstream stream malformed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// handleMessages handles GET (history without the system message) and
// DELETE (reset) on /api/messages.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := session.FromContext(r.Context())
	if sessionID == "" {
		g.sendJSONError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		history, err := g.completion.History(r.Context(), sessionID)
		if err != nil {
			g.logger.Error("failed to load history", "error", err)
			status, message := classifyError(err)
			g.sendJSONError(w, status, message)
			return
		}
		g.sendJSON(w, http.StatusOK, MessagesResponse{Messages: history})

	case http.MethodDelete:
		if err := g.completion.Reset(r.Context(), sessionID); err != nil {
			g.logger.Error("failed to clear history", "error", err)
			status, message := classifyError(err)
			g.sendJSONError(w, status, message)
			return
		}
		g.sendJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// sseWriter emits completion events as SSE data frames. Headers are written
// on the first event so failures before streaming can still use a status code.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter, flusher http.Flusher) *sseWriter {
	return &sseWriter{w: w, flusher: flusher}
}

func (s *sseWriter) start() {
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

// Started reports whether any frame has been written.
func (s *sseWriter) Started() bool { return s.started }

// Emit writes one event frame and flushes it.
func (s *sseWriter) Emit(ev completion.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !s.started {
		s.start()
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Error writes a terminal error frame.
func (s *sseWriter) Error(message string) {
	if !s.started {
		s.start()
	}
	data, _ := json.Marshal(map[string]string{"error": message})
	_, _ = fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", data)
	s.flusher.Flush()
}

// sendJSON writes a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}
