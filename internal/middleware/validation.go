package middleware

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/agentchat-ai/conversation-service/internal/model"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("message is required and must be a non-empty string")
	}
	if len(content) > model.MaxMessageLength {
		return fmt.Errorf("message too long, maximum %d characters allowed", model.MaxMessageLength)
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > model.MaxTitleLength {
		return fmt.Errorf("title too long, maximum %d characters allowed", model.MaxTitleLength)
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
