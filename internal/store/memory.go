package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentchat-ai/conversation-service/internal/model"
)

// MemoryStore is an in-memory Store used by tests and when no MongoDB
// URI is configured. Semantics match the Mongo implementation.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*model.Conversation // keyed by threadId
	titler TitleGenerator
}

// NewMemoryStore creates an empty in-memory store. titler may be nil, in
// which case first-message title derivation is skipped.
func NewMemoryStore(titler TitleGenerator) *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*model.Conversation),
		titler: titler,
	}
}

// Create allocates a new conversation with a random threadId.
func (s *MemoryStore) Create(ctx context.Context, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if title == "" {
		title = model.DefaultTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		ThreadID:  uuid.NewString(),
		Title:     title,
		Messages:  []model.Message{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.byID[conv.ThreadID] = conv
	s.mu.Unlock()

	return copyConversation(conv), nil
}

// FindByThreadID returns the active conversation with the given threadId.
func (s *MemoryStore) FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.byID[threadID]
	if !ok || !conv.IsActive {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// AppendMessage appends a message to an active conversation.
func (s *MemoryStore) AppendMessage(ctx context.Context, threadID, content string, sender model.Sender) (*model.Conversation, error) {
	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if err := validateSender(sender); err != nil {
		return nil, err
	}

	// Title derivation happens outside the lock; it may call an LLM.
	var title string
	if first, err := s.isFirstUserMessage(threadID, sender); err != nil {
		return nil, err
	} else if first && s.titler != nil {
		title = s.titler.Generate(ctx, content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[threadID]
	if !ok || !conv.IsActive {
		return nil, ErrNotFound
	}

	now := time.Now()
	conv.Messages = append(conv.Messages, model.Message{
		Content:   content,
		Sender:    sender,
		Timestamp: now,
	})
	if title != "" && len(conv.Messages) == 1 {
		conv.Title = title
	}
	conv.UpdatedAt = now

	return copyConversation(conv), nil
}

func (s *MemoryStore) isFirstUserMessage(threadID string, sender model.Sender) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.byID[threadID]
	if !ok || !conv.IsActive {
		return false, ErrNotFound
	}
	return len(conv.Messages) == 0 && sender == model.SenderUser && conv.Title == model.DefaultTitle, nil
}

// List returns a page of active conversations, newest activity first.
func (s *MemoryStore) List(ctx context.Context, page, pageSize int) ([]model.Conversation, int, error) {
	page, pageSize = normalizePage(page, pageSize, 20)

	s.mu.RLock()
	active := make([]*model.Conversation, 0, len(s.byID))
	for _, conv := range s.byID {
		if conv.IsActive {
			active = append(active, conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})

	total := len(active)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]model.Conversation, 0, end-start)
	for _, conv := range active[start:end] {
		items = append(items, *copyConversation(conv))
	}
	return items, total, nil
}

// Search matches query case-insensitively against titles and message
// content of active conversations.
func (s *MemoryStore) Search(ctx context.Context, query string, page, pageSize int) ([]model.Conversation, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, &ValidationError{Reason: "search query is required"}
	}
	page, pageSize = normalizePage(page, pageSize, 10)
	needle := strings.ToLower(query)

	s.mu.RLock()
	var matched []*model.Conversation
	for _, conv := range s.byID {
		if conv.IsActive && conversationMatches(conv, needle) {
			matched = append(matched, conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]model.Conversation, 0, end-start)
	for _, conv := range matched[start:end] {
		items = append(items, *copyConversation(conv))
	}
	return items, total, nil
}

func conversationMatches(conv *model.Conversation, needle string) bool {
	if strings.Contains(strings.ToLower(conv.Title), needle) {
		return true
	}
	for _, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			return true
		}
	}
	return false
}

// Rename sets a new title on an active conversation.
func (s *MemoryStore) Rename(ctx context.Context, threadID, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Reason: "title is required"}
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[threadID]
	if !ok || !conv.IsActive {
		return nil, ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return copyConversation(conv), nil
}

// SoftDelete hides a conversation from all subsequent reads.
func (s *MemoryStore) SoftDelete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[threadID]
	if !ok || !conv.IsActive {
		return ErrNotFound
	}
	conv.IsActive = false
	conv.UpdatedAt = time.Now()
	return nil
}

func copyConversation(conv *model.Conversation) *model.Conversation {
	out := *conv
	out.Messages = make([]model.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return &out
}
