// Package service provides business logic for the conversation service.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentchat-ai/conversation-service/internal/agent"
	"github.com/agentchat-ai/conversation-service/internal/events"
	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/internal/store"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
	"github.com/agentchat-ai/conversation-service/pkg/metrics"
)

// MessageService implements the message append protocol: it binds one
// user turn to persisted state and an agent reply.
type MessageService struct {
	store        store.Store
	responder    agent.Responder
	events       *events.Publisher
	agentTimeout time.Duration
	logger       *logger.Logger
}

// NewMessageService creates a new message service. events may be nil.
func NewMessageService(st store.Store, responder agent.Responder, ev *events.Publisher, agentTimeout time.Duration, log *logger.Logger) *MessageService {
	if agentTimeout <= 0 {
		agentTimeout = 120 * time.Second
	}
	return &MessageService{
		store:        st,
		responder:    responder,
		events:       ev,
		agentTimeout: agentTimeout,
		logger:       log,
	}
}

// SendResult is the outcome of one completed user turn.
type SendResult struct {
	ThreadID          string
	Response          string
	MessageCount      int
	Title             string
	Messages          []model.Message
	IsNewConversation bool
}

// Send runs the append protocol for message on thread threadID. An empty
// threadID starts a new conversation. A threadID unknown to the store is
// repaired once by creating a fresh conversation seeded with the message;
// if that creation also fails the error is fatal.
func (s *MessageService) Send(ctx context.Context, threadID, message string) (*SendResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &store.ValidationError{Reason: "message is required and must be a non-empty string"}
	}
	if len(message) > model.MaxMessageLength {
		return nil, &store.ValidationError{Reason: fmt.Sprintf("message too long, maximum %d characters allowed", model.MaxMessageLength)}
	}

	isNew := false
	if threadID == "" {
		conv, err := s.store.Create(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		threadID = conv.ThreadID
		isNew = true
		metrics.ConversationsTotal.Inc()
	}

	conv, err := s.store.AppendMessage(ctx, threadID, message, model.SenderUser)
	if errors.Is(err, store.ErrNotFound) {
		// Stale client state: the referenced thread is unknown. Recover
		// once by starting a fresh conversation seeded with this message.
		s.logger.Info("thread unknown, creating replacement conversation",
			zap.String("stale_thread_id", threadID))
		conv, err = s.createSeeded(ctx, message)
		if err != nil {
			return nil, err
		}
		threadID = conv.ThreadID
		isNew = true
	} else if err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.SenderUser)).Inc()
	s.events.MessageAppended(ctx, threadID, *conv.LastMessage())

	agentCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	reply, err := s.responder.Respond(agentCtx, conv.Messages, threadID)
	if err != nil {
		if errors.Is(agentCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: timed out after %s", agent.ErrNoResponse, s.agentTimeout)
		}
		s.logger.Error("agent responder failed", zap.String("thread_id", threadID), zap.Error(err))
		return nil, err
	}

	conv, err = s.store.AppendMessage(ctx, threadID, reply, model.SenderAI)
	if err != nil {
		// The user message is durable; the thread can be resumed later.
		return nil, fmt.Errorf("failed to persist agent reply: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues(string(model.SenderAI)).Inc()
	s.events.MessageAppended(ctx, threadID, *conv.LastMessage())

	return &SendResult{
		ThreadID:          conv.ThreadID,
		Response:          reply,
		MessageCount:      len(conv.Messages),
		Title:             conv.Title,
		Messages:          conv.Messages,
		IsNewConversation: isNew,
	}, nil
}

func (s *MessageService) createSeeded(ctx context.Context, message string) (*model.Conversation, error) {
	conv, err := s.store.Create(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create replacement conversation: %w", err)
	}
	metrics.ConversationsTotal.Inc()
	conv, err = s.store.AppendMessage(ctx, conv.ThreadID, message, model.SenderUser)
	if err != nil {
		return nil, fmt.Errorf("failed to seed replacement conversation: %w", err)
	}
	return conv, nil
}
