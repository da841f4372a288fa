package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavilySearchCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "weather in oslo", req.Query)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Oslo Weather", "url": "https://example.com/oslo", "content": "Cloudy, 12C"},
			},
		})
	}))
	defer srv.Close()

	tool, err := NewTavilySearch("test-key", WithTavilyBaseURL(srv.URL))
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), "weather in oslo")
	require.NoError(t, err)
	assert.Contains(t, out, "Oslo Weather")
	assert.Contains(t, out, "Cloudy, 12C")
}

func TestTavilySearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	tool, err := NewTavilySearch("test-key", WithTavilyBaseURL(srv.URL))
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), "nothing at all")
	require.NoError(t, err)
	assert.Equal(t, "No search results found.", out)
}

func TestTavilySearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tool, err := NewTavilySearch("bad-key", WithTavilyBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = tool.Call(context.Background(), "query")
	assert.Error(t, err)
}

func TestTavilyRequiresAPIKey(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	_, err := NewTavilySearch("")
	assert.Error(t, err)
}
