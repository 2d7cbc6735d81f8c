package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/salesbot/salesbot/internal/conversation"
)

const maxQuestionBytes = 4 << 10

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "conversation pipeline is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	reply := deps.Answerer.Handle(r.Context(), question)
	writeJSON(w, http.StatusOK, askResponse{Reply: reply, DurationMs: reply.Duration.Milliseconds()})
}

type askResponse struct {
	conversation.Reply
	DurationMs int64 `json:"duration_ms"`
}

func handleStatus(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STATUS_NOT_CONFIGURED", "conversation pipeline is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": deps.Answerer.Health(r.Context())})
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []any{}, "count": 0})
		return
	}
	entries := deps.History.Entries()
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
