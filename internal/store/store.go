// Package store provides durable persistence for conversations.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentchat-ai/conversation-service/internal/model"
)

// ErrNotFound is returned when no active conversation matches a threadId.
// Soft-deleted conversations are reported as not found.
var ErrNotFound = errors.New("conversation not found")

// ValidationError indicates rejected input. It is never retried and maps
// to a 400 at the HTTP boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TitleGenerator derives a conversation title from the first user message.
// Implementations must not fail; they fall back internally.
type TitleGenerator interface {
	Generate(ctx context.Context, firstMessage string) string
}

// Store is the conversation store contract. All operations observe only
// active conversations; soft-deleted threads behave as absent.
type Store interface {
	// Create allocates a conversation with a fresh unique threadId. An
	// empty title gets the default title.
	Create(ctx context.Context, title string) (*model.Conversation, error)

	// FindByThreadID returns the full conversation or ErrNotFound.
	FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error)

	// AppendMessage appends one message with the current timestamp and
	// refreshes updatedAt. The conversation title is derived exactly once,
	// when the first message of the thread is a user message.
	AppendMessage(ctx context.Context, threadID, content string, sender model.Sender) (*model.Conversation, error)

	// List returns one page of active conversations ordered by updatedAt
	// descending, plus the total active count. page is 1-indexed.
	List(ctx context.Context, page, pageSize int) ([]model.Conversation, int, error)

	// Search returns active conversations whose title or message content
	// matches query, ordered by relevance then updatedAt descending,
	// plus the total match count.
	Search(ctx context.Context, query string, page, pageSize int) ([]model.Conversation, int, error)

	// Rename sets a new title. Empty titles are rejected.
	Rename(ctx context.Context, threadID, title string) (*model.Conversation, error)

	// SoftDelete deactivates a conversation. Deleting an absent or
	// already-inactive thread returns ErrNotFound.
	SoftDelete(ctx context.Context, threadID string) error
}

func validateTitle(title string) error {
	if len(title) > model.MaxTitleLength {
		return &ValidationError{Reason: fmt.Sprintf("title exceeds %d characters", model.MaxTitleLength)}
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Reason: "message content cannot be empty"}
	}
	if len(content) > model.MaxMessageLength {
		return &ValidationError{Reason: fmt.Sprintf("message exceeds %d characters", model.MaxMessageLength)}
	}
	return nil
}

func validateSender(sender model.Sender) error {
	if sender != model.SenderUser && sender != model.SenderAI {
		return &ValidationError{Reason: "sender must be user or ai"}
	}
	return nil
}

func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
