package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/validation"
	"research-agent/internal/planner"
	"research-agent/internal/workflow"
)

const maxRequestBody = 1 << 20

// ResearchRequest is the wire shape of POST /api/research.
type ResearchRequest struct {
	Message             string `json:"message"`
	ChatID              string `json:"chatId"`
	SessionID           string `json:"sessionId,omitempty"`
	ConversationContext []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"conversationContext,omitempty"`
}

// handleResearch validates the request, opens the SSE stream and pumps
// workflow events as data frames until the stream closes.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	clientKey := clientAddr(r)

	if s.limiter != nil {
		decision, _ := s.limiter.CheckAndRecord(r.Context(), "/api/research", clientKey)
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(decision.ResetAt).Seconds())+1, 10))
			writeError(w, http.StatusTooManyRequests, apperrors.NewRateLimitedError(clientKey, decision.ResetAt))
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewRequestInvalidError("unreadable request body"))
		return
	}
	if err := validation.ValidateResearchRequest(body); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewRequestInvalidError(err.Error()))
		return
	}

	var req ResearchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewRequestInvalidError(err.Error()))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, apperrors.NewRequestInvalidError("streaming unsupported by transport"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	history := make([]planner.Message, 0, len(req.ConversationContext))
	for _, m := range req.ConversationContext {
		history = append(history, planner.Message{Role: m.Role, Content: m.Content})
	}

	em := workflow.NewEmitter(s.logger)
	go s.orchestrator.Run(r.Context(), workflow.Request{
		Message:   req.Message,
		ChatID:    req.ChatID,
		SessionID: req.SessionID,
		History:   history,
	}, em)

	s.stream(w, r, flusher, em)
}

// stream drains the emitter into SSE data frames, with heartbeat comments
// while the pipeline is quiet.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, flusher http.Flusher, em *workflow.Emitter) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-em.Events():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.WithError(err).Error("failed to serialize workflow event", map[string]interface{}{
					"type": string(ev.Kind()),
				})
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				s.logger.Warn("client write failed, closing stream", map[string]interface{}{
					"workflowId": em.WorkflowID(),
				})
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			s.logger.Info("client disconnected", map[string]interface{}{
				"workflowId": em.WorkflowID(),
			})
			return
		}
	}
}

// clientAddr prefers the first X-Forwarded-For hop, falling back to the
// socket peer.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, stdErr *apperrors.StandardError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": stdErr,
	})
}
