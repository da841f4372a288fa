// Package model defines data structures for the conversation service.
package model

import (
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the upper bound on conversation titles.
const MaxTitleLength = 200

// DefaultTitle is used for conversations created without an explicit title
// before the first user message arrives.
const DefaultTitle = "New Conversation"

// Conversation is a persisted chat thread with its ordered messages.
type Conversation struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	ThreadID  string    `json:"threadId" bson:"threadId"`
	Title     string    `json:"title" bson:"title"`
	Messages  []Message `json:"messages" bson:"messages"`
	IsActive  bool      `json:"isActive" bson:"isActive"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// LastMessage returns the most recent message, or nil for an empty thread.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Summary projects a conversation into the truncated shape used by
// list and search results. previewLen bounds the last-message preview.
func (c *Conversation) Summary(previewLen int) ConversationSummary {
	s := ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		ThreadID:     c.ThreadID,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if last := c.LastMessage(); last != nil {
		s.LastMessage = &MessagePreview{
			Content:   truncate(last.Content, previewLen),
			Sender:    last.Sender,
			Timestamp: last.Timestamp,
		}
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// Back up to a rune boundary so multi-byte characters are never split
	// mid-sequence.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// ConversationSummary is the projection used in list/search responses.
type ConversationSummary struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	ThreadID     string          `json:"threadId"`
	MessageCount int             `json:"messageCount"`
	LastMessage  *MessagePreview `json:"lastMessage"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// MessagePreview is the truncated last message embedded in a summary.
type MessagePreview struct {
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Pagination describes the position of a page within the full result set.
type Pagination struct {
	Current      int `json:"current"`
	Total        int `json:"total"`
	Count        int `json:"count"`
	TotalRecords int `json:"totalRecords"`
}
