package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const conversationsCollection = "conversations"

// MongoStore is the production Store backed by a MongoDB collection.
// Message appends are single-document atomic updates.
type MongoStore struct {
	client     *mongo.Client
	coll       *mongo.Collection
	titler     TitleGenerator
	logger     *logger.Logger
	textSearch bool
}

// ConnectMongo connects to MongoDB and returns a ready MongoStore with
// indexes ensured. titler may be nil.
func ConnectMongo(ctx context.Context, uri, dbName string, titler TitleGenerator, log *logger.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{
		client: client,
		coll:   client.Database(dbName).Collection(conversationsCollection),
		titler: titler,
		logger: log,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Ping verifies the database connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "threadId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	// The text index is best-effort: without it, search degrades to the
	// regex path.
	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: "text"}, {Key: "messages.content", Value: "text"}},
		Options: options.Index().
			SetName("TextSearchIndex").
			SetWeights(bson.D{{Key: "title", Value: 10}, {Key: "messages.content", Value: 5}}).
			SetDefaultLanguage("none"),
	})
	if err != nil {
		s.logger.Warn("text index unavailable, search will use regex matching", zap.Error(err))
	} else {
		s.textSearch = true
	}
	return nil
}

// Create inserts a new conversation with a fresh threadId.
func (s *MongoStore) Create(ctx context.Context, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if title == "" {
		title = model.DefaultTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        bson.NewObjectID().Hex(),
		ThreadID:  uuid.NewString(),
		Title:     title,
		Messages:  []model.Message{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.coll.InsertOne(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conv, nil
}

// FindByThreadID returns an active conversation or ErrNotFound.
func (s *MongoStore) FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.coll.FindOne(ctx, activeFilter(threadID)).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	return &conv, nil
}

// AppendMessage pushes a message onto the conversation document. When the
// thread is empty and the sender is the user, the title is derived first
// and set in the same atomic update, guarded by an empty-messages filter
// so concurrent appends can never re-title a thread.
func (s *MongoStore) AppendMessage(ctx context.Context, threadID, content string, sender model.Sender) (*model.Conversation, error) {
	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if err := validateSender(sender); err != nil {
		return nil, err
	}

	existing, err := s.FindByThreadID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := model.Message{Content: content, Sender: sender, Timestamp: now}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	if len(existing.Messages) == 0 && sender == model.SenderUser && existing.Title == model.DefaultTitle && s.titler != nil {
		title := s.titler.Generate(ctx, content)
		filter := activeFilter(threadID)
		filter = append(filter, bson.E{Key: "messages.0", Value: bson.D{{Key: "$exists", Value: false}}})

		var conv model.Conversation
		err := s.coll.FindOneAndUpdate(ctx, filter, bson.D{
			{Key: "$push", Value: bson.D{{Key: "messages", Value: msg}}},
			{Key: "$set", Value: bson.D{{Key: "title", Value: title}, {Key: "updatedAt", Value: now}}},
		}, opts).Decode(&conv)
		if err == nil {
			return &conv, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to append message: %w", err)
		}
		// Lost the race for first message: fall through to a plain push.
	}

	var conv model.Conversation
	err = s.coll.FindOneAndUpdate(ctx, activeFilter(threadID), bson.D{
		{Key: "$push", Value: bson.D{{Key: "messages", Value: msg}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now}}},
	}, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &conv, nil
}

// List returns a page of active conversations ordered by recent activity.
func (s *MongoStore) List(ctx context.Context, page, pageSize int) ([]model.Conversation, int, error) {
	page, pageSize = normalizePage(page, pageSize, 20)
	filter := bson.D{{Key: "isActive", Value: true}}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetSkip(int64((page-1)*pageSize)).
		SetLimit(int64(pageSize)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}

	var items []model.Conversation
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return items, int(total), nil
}

// Search matches active conversations against the query. It prefers the
// text index (relevance-ranked) and falls back to case-insensitive regex
// over title and message content.
func (s *MongoStore) Search(ctx context.Context, query string, page, pageSize int) ([]model.Conversation, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, &ValidationError{Reason: "search query is required"}
	}
	page, pageSize = normalizePage(page, pageSize, 10)
	skip := int64((page - 1) * pageSize)

	if s.textSearch {
		items, total, err := s.textQuery(ctx, query, skip, int64(pageSize))
		if err == nil {
			return items, total, nil
		}
		s.logger.Warn("text search failed, falling back to regex", zap.Error(err))
	}

	pattern := regexp.QuoteMeta(query)
	filter := bson.D{
		{Key: "isActive", Value: true},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: bson.D{{Key: "$regex", Value: pattern}, {Key: "$options", Value: "i"}}}},
			bson.D{{Key: "messages.content", Value: bson.D{{Key: "$regex", Value: pattern}, {Key: "$options", Value: "i"}}}},
		}},
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(pageSize)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search conversations: %w", err)
	}

	var items []model.Conversation
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search results: %w", err)
	}
	return items, int(total), nil
}

func (s *MongoStore) textQuery(ctx context.Context, query string, skip, limit int64) ([]model.Conversation, int, error) {
	filter := bson.D{
		{Key: "isActive", Value: true},
		{Key: "$text", Value: bson.D{{Key: "$search", Value: query}}},
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().
		SetProjection(bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}}}).
		SetSort(bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}},
			{Key: "updatedAt", Value: -1},
		}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}

	var items []model.Conversation
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

// Rename sets a new title on an active conversation.
func (s *MongoStore) Rename(ctx context.Context, threadID, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Reason: "title is required"}
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	var conv model.Conversation
	err := s.coll.FindOneAndUpdate(ctx, activeFilter(threadID), bson.D{
		{Key: "$set", Value: bson.D{{Key: "title", Value: title}, {Key: "updatedAt", Value: time.Now()}}},
	}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	return &conv, nil
}

// SoftDelete flips isActive. A second delete observes ErrNotFound.
func (s *MongoStore) SoftDelete(ctx context.Context, threadID string) error {
	res, err := s.coll.UpdateOne(ctx, activeFilter(threadID), bson.D{
		{Key: "$set", Value: bson.D{{Key: "isActive", Value: false}, {Key: "updatedAt", Value: time.Now()}}},
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func activeFilter(threadID string) bson.D {
	return bson.D{
		{Key: "threadId", Value: threadID},
		{Key: "isActive", Value: true},
	}
}
