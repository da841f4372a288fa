package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

// ErrSendInFlight is returned when a send is attempted while a previous
// send has not resolved. The input surface is expected to stay disabled
// until the pending send completes.
var ErrSendInFlight = errors.New("a message send is already in flight")

// EntryStatus tracks the delivery state of a locally cached entry.
type EntryStatus string

const (
	// EntryPending marks an optimistic append awaiting server confirmation.
	EntryPending EntryStatus = "pending"
	// EntryDelivered marks an entry confirmed by the server.
	EntryDelivered EntryStatus = "delivered"
	// EntryFailed marks an entry whose send failed. Failed entries are
	// terminal: they are never retried automatically.
	EntryFailed EntryStatus = "failed"
)

// Entry is one message in the controller's local transcript cache.
type Entry struct {
	Content   string
	Sender    model.Sender
	Status    EntryStatus
	Timestamp time.Time
}

// API is the slice of the conversation service the controller needs.
// *Client satisfies it.
type API interface {
	SendMessage(ctx context.Context, threadID, message string) (*model.SendMessageResponse, error)
	GetConversation(ctx context.Context, threadID string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, threadID string) error
}

// Controller holds client-side chat state for one user session: which
// thread is active and the cached transcript for it. Sends are optimistic:
// the user entry appears immediately and is reconciled when the server
// responds. A send that resolves after the user has switched threads is
// discarded rather than merged.
type Controller struct {
	api    API
	logger *logger.Logger

	activeThreadID string
	title          string
	entries        []Entry
	generation     uint64
	sendInFlight   bool
}

// NewController creates a controller in the "no thread selected" state.
func NewController(api API, log *logger.Logger) *Controller {
	return &Controller{
		api:    api,
		logger: log,
	}
}

// ActiveThreadID returns the selected thread ID, or "" when no thread is
// selected.
func (c *Controller) ActiveThreadID() string {
	return c.activeThreadID
}

// Title returns the active conversation's title.
func (c *Controller) Title() string {
	return c.title
}

// Entries returns a copy of the local transcript.
func (c *Controller) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// NewConversation resets to the empty state. No server-side conversation
// is created; creation is deferred to the first send.
func (c *Controller) NewConversation() {
	c.generation++
	c.activeThreadID = ""
	c.title = ""
	c.entries = nil
}

// Select makes threadID the active thread, replacing the local transcript
// with the server's copy. If the user navigates away before the fetch
// resolves, the fetched result is discarded.
func (c *Controller) Select(ctx context.Context, threadID string) error {
	c.generation++
	gen := c.generation

	conv, err := c.api.GetConversation(ctx, threadID)
	if err != nil {
		return err
	}
	if c.generation != gen {
		c.logger.Debug("discarding stale conversation fetch",
			zap.String("thread_id", threadID))
		return nil
	}

	entries := make([]Entry, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		entries = append(entries, Entry{
			Content:   msg.Content,
			Sender:    msg.Sender,
			Status:    EntryDelivered,
			Timestamp: msg.Timestamp,
		})
	}

	c.activeThreadID = conv.ThreadID
	c.title = conv.Title
	c.entries = entries
	return nil
}

// Send submits text on the active thread, or starts a new conversation
// when no thread is selected. The user entry is appended locally before
// the round trip; on success it is confirmed and the reply appended, on
// failure it becomes a terminal failed entry followed by an error notice.
func (c *Controller) Send(ctx context.Context, text string) error {
	if c.sendInFlight {
		return ErrSendInFlight
	}
	c.sendInFlight = true
	defer func() { c.sendInFlight = false }()

	gen := c.generation
	idx := len(c.entries)
	c.entries = append(c.entries, Entry{
		Content:   text,
		Sender:    model.SenderUser,
		Status:    EntryPending,
		Timestamp: time.Now(),
	})

	resp, err := c.api.SendMessage(ctx, c.activeThreadID, text)

	if c.generation != gen {
		// The user switched threads while the send was in flight. The
		// server outcome stands; the local result is simply not shown.
		c.logger.Debug("discarding stale send result")
		return nil
	}

	if err != nil {
		c.entries[idx].Status = EntryFailed
		c.entries = append(c.entries, Entry{
			Content:   "Sorry, something went wrong sending your message. Please try again.",
			Sender:    model.SenderAI,
			Status:    EntryFailed,
			Timestamp: time.Now(),
		})
		return err
	}

	c.entries[idx].Status = EntryDelivered
	c.activeThreadID = resp.ThreadID
	c.title = resp.ConversationTitle
	c.entries = append(c.entries, Entry{
		Content:   resp.Response,
		Sender:    model.SenderAI,
		Status:    EntryDelivered,
		Timestamp: time.Now(),
	})
	return nil
}

// Delete removes a conversation server-side. Deleting the active thread
// resets the controller to the empty state.
func (c *Controller) Delete(ctx context.Context, threadID string) error {
	if err := c.api.DeleteConversation(ctx, threadID); err != nil {
		return err
	}
	if threadID == c.activeThreadID {
		c.NewConversation()
	}
	return nil
}
