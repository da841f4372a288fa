package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentchat-ai/conversation-service/internal/agent"
	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/internal/store"
)

// envelope is the standard response wrapper for conversation endpoints.
type envelope struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data,omitempty"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writePage writes a success envelope with pagination metadata.
func writePage(w http.ResponseWriter, data any, p model.Pagination) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Pagination: &p})
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// writeServiceError maps a service-layer error onto a status code and
// failure envelope.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, agent.ErrNoResponse):
		writeError(w, http.StatusInternalServerError, "no response generated")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
