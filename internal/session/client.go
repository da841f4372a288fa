// Package session implements the client side of the conversation API: a
// thin HTTP client plus a controller that keeps local chat state in sync
// with the server.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentchat-ai/conversation-service/internal/model"
)

// APIError is a non-2xx response from the conversation API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the conversation service HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithToken sets a bearer token sent on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// NewClient creates an API client for the given base URL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts a user message. An empty threadID asks the server to
// start a new conversation.
func (c *Client) SendMessage(ctx context.Context, threadID, message string) (*model.SendMessageResponse, error) {
	var resp model.SendMessageResponse
	err := c.do(ctx, http.MethodPost, "/api/message", model.SendMessageRequest{
		Message:  message,
		ThreadID: threadID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// listEnvelope mirrors the server's wrapped collection responses.
type listEnvelope struct {
	Success    bool                        `json:"success"`
	Data       []model.ConversationSummary `json:"data"`
	Pagination *model.Pagination           `json:"pagination"`
	Error      string                      `json:"error"`
}

type convEnvelope struct {
	Success bool                `json:"success"`
	Data    *model.Conversation `json:"data"`
	Error   string              `json:"error"`
}

// ListConversations fetches one page of the conversation directory.
func (c *Client) ListConversations(ctx context.Context, page, limit int) ([]model.ConversationSummary, *model.Pagination, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp listEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/conversations?"+q.Encode(), nil, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Data, resp.Pagination, nil
}

// SearchConversations searches the directory.
func (c *Client) SearchConversations(ctx context.Context, query string, page, limit int) ([]model.ConversationSummary, *model.Pagination, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp listEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/conversations/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Data, resp.Pagination, nil
}

// GetConversation fetches a full conversation by thread ID.
func (c *Client) GetConversation(ctx context.Context, threadID string) (*model.Conversation, error) {
	var resp convEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(threadID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateConversation creates an empty conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	var resp convEnvelope
	err := c.do(ctx, http.MethodPost, "/api/conversations", model.CreateConversationRequest{Title: title}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// RenameConversation sets an explicit title.
func (c *Client) RenameConversation(ctx context.Context, threadID, title string) (*model.Conversation, error) {
	var resp convEnvelope
	err := c.do(ctx, http.MethodPut, "/api/conversations/"+url.PathEscape(threadID)+"/title",
		model.UpdateTitleRequest{Title: title}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeleteConversation removes a conversation from the directory.
func (c *Client) DeleteConversation(ctx context.Context, threadID string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(threadID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		buf = &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var fail struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&fail)
		if fail.Error == "" {
			fail.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: fail.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
