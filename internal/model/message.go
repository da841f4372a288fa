package model

import (
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// MaxMessageLength bounds message content at the ingress boundary.
const MaxMessageLength = 10000

// Message is a single entry in a conversation, embedded in its document.
type Message struct {
	Content   string    `json:"content" bson:"content"`
	Sender    Sender    `json:"sender" bson:"sender"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// SendMessageRequest is the body of POST /api/message.
type SendMessageRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId,omitempty"`
}

// SendMessageResponse is the body returned by POST /api/message.
type SendMessageResponse struct {
	Success           bool   `json:"success"`
	Response          string `json:"response"`
	ThreadID          string `json:"threadId"`
	MessageCount      int    `json:"messageCount"`
	ConversationTitle string `json:"conversationTitle"`
	IsNewConversation bool   `json:"isNewConversation"`
}

// StartConversationRequest is the body of POST /api/conversations/start.
type StartConversationRequest struct {
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// UpdateTitleRequest is the body of PUT /api/conversations/{threadId}/title.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}
