package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentchat-ai/conversation-service/internal/model"
)

func TestClientSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/message", r.URL.Path)

		var req model.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Message)

		json.NewEncoder(w).Encode(model.SendMessageResponse{
			Success:  true,
			Response: "world",
			ThreadID: "t-1",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.SendMessage(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Response)
	assert.Equal(t, "t-1", resp.ThreadID)
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "conversation not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetConversation(context.Background(), "missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "conversation not found", apiErr.Message)
}

func TestClientListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"threadId": "t-1", "title": "First"},
			},
			"pagination": map[string]int{
				"current": 2, "total": 3, "count": 1, "totalRecords": 11,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	items, pagination, err := c.ListConversations(context.Background(), 2, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "First", items[0].Title)
	require.NotNil(t, pagination)
	assert.Equal(t, 11, pagination.TotalRecords)
}

func TestClientSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("secret-token"))
	require.NoError(t, c.DeleteConversation(context.Background(), "t-1"))
}
