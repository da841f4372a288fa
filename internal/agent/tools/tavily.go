// Package tools provides the external lookup tools available to the
// agent workflow.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TavilySearch is a web search tool backed by the Tavily API.
type TavilySearch struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Topic      string
	httpClient *http.Client
}

type TavilyOption func(*TavilySearch)

// WithTavilyBaseURL overrides the API endpoint.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(t *TavilySearch) {
		t.BaseURL = baseURL
	}
}

// WithTavilyMaxResults sets the number of results to return (1-10).
func WithTavilyMaxResults(n int) TavilyOption {
	return func(t *TavilySearch) {
		if n < 1 {
			n = 1
		}
		if n > 10 {
			n = 10
		}
		t.MaxResults = n
	}
}

// WithTavilyTopic sets the search topic ("general" or "news").
func WithTavilyTopic(topic string) TavilyOption {
	return func(t *TavilySearch) {
		t.Topic = topic
	}
}

// NewTavilySearch creates a new Tavily search tool. If apiKey is empty it
// tries the TAVILY_API_KEY environment variable.
func NewTavilySearch(apiKey string, opts ...TavilyOption) (*TavilySearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY not set")
	}

	t := &TavilySearch{
		APIKey:     apiKey,
		BaseURL:    "https://api.tavily.com/search",
		MaxResults: 3,
		Topic:      "general",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Name returns the name of the tool.
func (t *TavilySearch) Name() string {
	return "web_search"
}

// Description returns the description of the tool.
func (t *TavilySearch) Description() string {
	return "Search the web for current information. " +
		"Useful for questions about recent events, weather, news, or facts. " +
		"Input should be a search query."
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Topic      string `json:"topic"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Call executes the search.
func (t *TavilySearch) Call(ctx context.Context, input string) (string, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:     t.APIKey,
		Query:      input,
		MaxResults: t.MaxResults,
		Topic:      t.Topic,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(data))
	}

	var result tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode tavily response: %w", err)
	}

	if len(result.Results) == 0 {
		return "No search results found.", nil
	}

	var sb strings.Builder
	for i, r := range result.Results {
		fmt.Fprintf(&sb, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return strings.TrimSpace(sb.String()), nil
}
