package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/agentchat-ai/conversation-service/internal/middleware"
	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/internal/service"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

// MessageHandler handles the message append endpoints.
type MessageHandler struct {
	messages      *service.MessageService
	conversations *service.ConversationService
	logger        *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messages *service.MessageService, conversations *service.ConversationService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messages:      messages,
		conversations: conversations,
		logger:        log,
	}
}

// Send handles POST /api/message
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(strings.TrimSpace(req.Message)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.messages.Send(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		h.logger.Error("failed to process message", zap.Error(err))
		writeServiceError(w, err, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, model.SendMessageResponse{
		Success:           true,
		Response:          result.Response,
		ThreadID:          result.ThreadID,
		MessageCount:      result.MessageCount,
		ConversationTitle: result.Title,
		IsNewConversation: result.IsNewConversation,
	})
}

// Start handles POST /api/conversations/start. It creates a conversation,
// optionally with an explicit title, and runs the first user turn in the
// same request.
func (h *MessageHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validation precedes creation: a rejected request must not leave an
	// empty conversation behind.
	if err := middleware.ValidateMessageContent(strings.TrimSpace(req.Message)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversations.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to start conversation", zap.Error(err))
		writeServiceError(w, err, "failed to start conversation")
		return
	}

	result, err := h.messages.Send(r.Context(), conv.ThreadID, req.Message)
	if err != nil {
		h.logger.Error("failed to process first message",
			zap.String("thread_id", conv.ThreadID), zap.Error(err))
		writeServiceError(w, err, "failed to start conversation")
		return
	}

	writeData(w, http.StatusCreated, map[string]any{
		"threadId":     result.ThreadID,
		"title":        result.Title,
		"messageCount": result.MessageCount,
		"messages":     result.Messages,
	})
}
