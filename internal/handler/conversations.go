// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agentchat-ai/conversation-service/internal/middleware"
	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/internal/service"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

// summaryPreviewLength bounds last-message previews on single-item
// summary responses.
const summaryPreviewLength = 100

// ConversationHandler handles conversation directory endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		writeServiceError(w, err, "failed to create conversation")
		return
	}

	writeData(w, http.StatusCreated, conv.Summary(summaryPreviewLength))
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	summaries, pagination, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeServiceError(w, err, "failed to list conversations")
		return
	}

	writePage(w, summaries, pagination)
}

// Search handles GET /api/conversations/search
func (h *ConversationHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "search query is required")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	summaries, pagination, err := h.service.Search(r.Context(), query, page, limit)
	if err != nil {
		h.logger.Error("failed to search conversations", zap.Error(err))
		writeServiceError(w, err, "failed to search conversations")
		return
	}

	writePage(w, summaries, pagination)
}

// Get handles GET /api/conversations/{threadId}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	conv, err := h.service.Get(r.Context(), threadID)
	if err != nil {
		writeServiceError(w, err, "failed to fetch conversation")
		return
	}

	writeData(w, http.StatusOK, conv)
}

// UpdateTitle handles PUT /api/conversations/{threadId}/title
func (h *ConversationHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	var req model.UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Rename(r.Context(), threadID, req.Title)
	if err != nil {
		writeServiceError(w, err, "failed to update title")
		return
	}

	writeData(w, http.StatusOK, conv.Summary(summaryPreviewLength))
}

// Delete handles DELETE /api/conversations/{threadId}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	if err := h.service.Delete(r.Context(), threadID); err != nil {
		writeServiceError(w, err, "failed to delete conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "conversation deleted",
	})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
