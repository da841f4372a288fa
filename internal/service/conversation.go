package service

import (
	"context"

	"github.com/agentchat-ai/conversation-service/internal/events"
	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/internal/store"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
	"github.com/agentchat-ai/conversation-service/pkg/metrics"
)

const (
	listPreviewLength   = 100
	searchPreviewLength = 150

	// maxPageSize mirrors the store's page size cap so pagination
	// metadata is computed from the limit actually applied.
	maxPageSize = 100
)

// StateEvictor drops responder-side cached state for a thread.
type StateEvictor interface {
	Forget(threadID string)
}

// ConversationService is the conversation directory: pagination, search,
// rename and soft delete over the set of threads.
type ConversationService struct {
	store   store.Store
	evictor StateEvictor
	events  *events.Publisher
	logger  *logger.Logger
}

// NewConversationService creates a new conversation service. evictor and
// events may be nil.
func NewConversationService(st store.Store, evictor StateEvictor, ev *events.Publisher, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:   st,
		evictor: evictor,
		events:  ev,
		logger:  log,
	}
}

// Create starts an empty conversation with an optional explicit title.
func (s *ConversationService) Create(ctx context.Context, title string) (*model.Conversation, error) {
	conv, err := s.store.Create(ctx, title)
	if err != nil {
		return nil, err
	}
	metrics.ConversationsTotal.Inc()
	return conv, nil
}

// Get returns the full conversation for a thread.
func (s *ConversationService) Get(ctx context.Context, threadID string) (*model.Conversation, error) {
	return s.store.FindByThreadID(ctx, threadID)
}

// List returns one page of conversation summaries with pagination
// metadata. page is 1-indexed.
func (s *ConversationService) List(ctx context.Context, page, limit int) ([]model.ConversationSummary, model.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.store.List(ctx, page, limit)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	summaries := make([]model.ConversationSummary, 0, len(items))
	for i := range items {
		summaries = append(summaries, items[i].Summary(listPreviewLength))
	}

	return summaries, paginate(page, limit, len(summaries), total), nil
}

// Search returns summaries of conversations matching query.
func (s *ConversationService) Search(ctx context.Context, query string, page, limit int) ([]model.ConversationSummary, model.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.store.Search(ctx, query, page, limit)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	metrics.SearchesTotal.Inc()

	summaries := make([]model.ConversationSummary, 0, len(items))
	for i := range items {
		summaries = append(summaries, items[i].Summary(searchPreviewLength))
	}

	return summaries, paginate(page, limit, len(summaries), total), nil
}

// Rename sets an explicit title on a conversation.
func (s *ConversationService) Rename(ctx context.Context, threadID, title string) (*model.Conversation, error) {
	return s.store.Rename(ctx, threadID, title)
}

// Delete soft-deletes a conversation and evicts any responder state for
// the thread.
func (s *ConversationService) Delete(ctx context.Context, threadID string) error {
	if err := s.store.SoftDelete(ctx, threadID); err != nil {
		return err
	}
	if s.evictor != nil {
		s.evictor.Forget(threadID)
	}
	s.events.ConversationDeleted(ctx, threadID)
	s.logger.WithThread(threadID).Info("conversation deleted")
	return nil
}

func paginate(page, limit, count, total int) model.Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return model.Pagination{
		Current:      page,
		Total:        totalPages,
		Count:        count,
		TotalRecords: total,
	}
}
