// Package agent implements the agent responder: a tool-augmented
// reasoning loop that produces the assistant reply for a thread.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/smallnest/langgraphgo/prebuilt"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"

	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
	"github.com/agentchat-ai/conversation-service/pkg/metrics"
)

// ErrNoResponse is returned when the workflow completes without a
// terminal textual reply.
var ErrNoResponse = errors.New("no response generated from agent")

// Responder produces the next assistant reply given a thread's message
// history. The threadID correlates with the responder's internal
// per-thread state, which is not durable.
type Responder interface {
	Respond(ctx context.Context, history []model.Message, threadID string) (string, error)
}

// GraphResponder runs a ReAct workflow (agent node cycling with a tool
// node) compiled from langgraphgo.
type GraphResponder struct {
	runnable *graph.StateRunnable[map[string]any]
	logger   *logger.Logger

	// checkpoints holds the last known message state per thread. It is a
	// cache owned by the responder; conversation durability lives in the
	// store.
	mu          sync.RWMutex
	checkpoints map[string][]llms.MessageContent
}

// NewGraphResponder builds the workflow over the given model and tools.
func NewGraphResponder(model llms.Model, inputTools []tools.Tool, log *logger.Logger) (*GraphResponder, error) {
	runnable, err := prebuilt.CreateReactAgentMap(model, inputTools, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build agent workflow: %w", err)
	}
	return &GraphResponder{
		runnable:    runnable,
		logger:      log,
		checkpoints: make(map[string][]llms.MessageContent),
	}, nil
}

// Respond invokes the workflow with the full message history and returns
// the terminal reply text.
func (r *GraphResponder) Respond(ctx context.Context, history []model.Message, threadID string) (string, error) {
	start := time.Now()

	messages := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Sender == model.SenderAI {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	state, err := r.runnable.Invoke(ctx, map[string]any{"messages": messages})
	if err != nil {
		metrics.RecordAgentRequest("error", time.Since(start).Seconds())
		return "", fmt.Errorf("agent workflow failed: %w", err)
	}

	finalMessages, ok := state["messages"].([]llms.MessageContent)
	if !ok || len(finalMessages) == 0 {
		metrics.RecordAgentRequest("error", time.Since(start).Seconds())
		return "", ErrNoResponse
	}

	r.mu.Lock()
	r.checkpoints[threadID] = finalMessages
	r.mu.Unlock()

	reply := lastAIText(finalMessages)
	if strings.TrimSpace(reply) == "" {
		metrics.RecordAgentRequest("empty", time.Since(start).Seconds())
		return "", ErrNoResponse
	}

	metrics.RecordAgentRequest("success", time.Since(start).Seconds())
	r.logger.WithThread(threadID).Debug("agent reply generated")
	return reply, nil
}

// ThreadState returns the cached workflow state for a thread, if any.
func (r *GraphResponder) ThreadState(threadID string) ([]llms.MessageContent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.checkpoints[threadID]
	return state, ok
}

// Forget drops the cached state for a thread. Called when a conversation
// is deleted.
func (r *GraphResponder) Forget(threadID string) {
	r.mu.Lock()
	delete(r.checkpoints, threadID)
	r.mu.Unlock()
}

func lastAIText(messages []llms.MessageContent) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llms.ChatMessageTypeAI {
			continue
		}
		var sb strings.Builder
		for _, part := range messages[i].Parts {
			if text, ok := part.(llms.TextContent); ok {
				sb.WriteString(text.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}
