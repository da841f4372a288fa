package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/internal/service"
	"github.com/agentchat-ai/conversation-service/internal/store"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

type echoResponder struct{}

func (echoResponder) Respond(ctx context.Context, history []model.Message, threadID string) (string, error) {
	return "echo: " + history[len(history)-1].Content, nil
}

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	st := store.NewMemoryStore(nil)
	log := logger.NewNop()

	messageSvc := service.NewMessageService(st, echoResponder{}, nil, time.Minute, log)
	conversationSvc := service.NewConversationService(st, nil, nil, log)

	conversationHandler := NewConversationHandler(conversationSvc, log)
	messageHandler := NewMessageHandler(messageSvc, conversationSvc, log)
	healthHandler := NewHealthHandler(nil, nil)

	r := chi.NewRouter()
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Route("/api", func(r chi.Router) {
		r.Post("/message", messageHandler.Send)
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Get("/search", conversationHandler.Search)
			r.Post("/start", messageHandler.Start)
			r.Route("/{threadId}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/title", conversationHandler.UpdateTitle)
				r.Delete("/", conversationHandler.Delete)
			})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSendMessageEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/message", model.SendMessageRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[model.SendMessageResponse](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, "echo: hello", body.Response)
	assert.NotEmpty(t, body.ThreadID)
	assert.Equal(t, 2, body.MessageCount)
	assert.True(t, body.IsNewConversation)
}

func TestSendMessageEmptyBodyRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/message", model.SendMessageRequest{Message: "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[envelope](t, resp)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Error)
}

func TestStartConversationEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/conversations/start", model.StartConversationRequest{
		Message: "kick things off",
		Title:   "Kickoff",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[struct {
		Success bool `json:"success"`
		Data    struct {
			ThreadID     string          `json:"threadId"`
			Title        string          `json:"title"`
			MessageCount int             `json:"messageCount"`
			Messages     []model.Message `json:"messages"`
		} `json:"data"`
	}](t, resp)

	assert.True(t, body.Success)
	assert.Equal(t, "Kickoff", body.Data.Title)
	assert.Equal(t, 2, body.Data.MessageCount)
	require.Len(t, body.Data.Messages, 2)
	assert.Equal(t, model.SenderUser, body.Data.Messages[0].Sender)
	assert.Equal(t, model.SenderAI, body.Data.Messages[1].Sender)
}

func TestStartConversationInvalidMessageLeavesNoOrphan(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/conversations/start", model.StartConversationRequest{Message: "   "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/conversations/start", model.StartConversationRequest{
		Message: strings.Repeat("a", model.MaxMessageLength+1),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Rejected requests must not create a conversation.
	items, total, err := st.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestSendMessageRejectsOversizedMessage(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/message", model.SendMessageRequest{
		Message: strings.Repeat("a", model.MaxMessageLength+1),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[envelope](t, resp)
	assert.False(t, body.Success)

	_, total, err := st.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateConversationRejectsOversizedTitle(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/conversations", model.CreateConversationRequest{
		Title: strings.Repeat("t", model.MaxTitleLength+1),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	_, total, err := st.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListEndpointPagination(t *testing.T) {
	srv, st := newTestServer(t)

	for i := 0; i < 3; i++ {
		_, err := st.Create(context.Background(), "")
		require.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/api/conversations?page=1&limit=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Success    bool                        `json:"success"`
		Data       []model.ConversationSummary `json:"data"`
		Pagination *model.Pagination           `json:"pagination"`
	}](t, resp)

	assert.True(t, body.Success)
	assert.Len(t, body.Data, 2)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 1, body.Pagination.Current)
	assert.Equal(t, 2, body.Pagination.Total)
	assert.Equal(t, 3, body.Pagination.TotalRecords)
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/conversations/search?q=")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetConversationEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	conv, err := st.Create(context.Background(), "Lookup Me")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/conversations/" + conv.ThreadID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Success bool               `json:"success"`
		Data    model.Conversation `json:"data"`
	}](t, resp)
	assert.Equal(t, "Lookup Me", body.Data.Title)
	assert.Equal(t, conv.ThreadID, body.Data.ThreadID)

	resp, err = http.Get(srv.URL + "/api/conversations/does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateTitleEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	conv, err := st.Create(context.Background(), "")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut,
		srv.URL+"/api/conversations/"+conv.ThreadID+"/title",
		bytes.NewReader([]byte(`{"title":"Renamed"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Success bool                      `json:"success"`
		Data    model.ConversationSummary `json:"data"`
	}](t, resp)
	assert.Equal(t, "Renamed", body.Data.Title)

	// Empty title is rejected before hitting the store.
	req, err = http.NewRequest(http.MethodPut,
		srv.URL+"/api/conversations/"+conv.ThreadID+"/title",
		bytes.NewReader([]byte(`{"title":"  "}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	fetched, err := st.FindByThreadID(context.Background(), conv.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fetched.Title)
}

func TestDeleteEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	conv, err := st.Create(context.Background(), "")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/conversations/"+conv.ThreadID, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}](t, resp)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Message)

	// Second delete observes not found.
	resp, err = http.DefaultClient.Do(req.Clone(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
