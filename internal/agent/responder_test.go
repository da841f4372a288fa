package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

func TestLastAITextPicksFinalReply(t *testing.T) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "question"),
		llms.TextParts(llms.ChatMessageTypeAI, "draft answer"),
		llms.TextParts(llms.ChatMessageTypeHuman, "follow up"),
		llms.TextParts(llms.ChatMessageTypeAI, "final answer"),
	}
	assert.Equal(t, "final answer", lastAIText(messages))
}

func TestLastAITextSkipsEmptyAIMessages(t *testing.T) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeAI, "usable"),
		{Role: llms.ChatMessageTypeAI},
	}
	assert.Equal(t, "usable", lastAIText(messages))
}

func TestLastAITextNoAIMessages(t *testing.T) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "only the user spoke"),
	}
	assert.Equal(t, "", lastAIText(messages))
}

func TestCheckpointLifecycle(t *testing.T) {
	r := &GraphResponder{
		logger:      logger.NewNop(),
		checkpoints: make(map[string][]llms.MessageContent),
	}

	_, ok := r.ThreadState("thread-1")
	assert.False(t, ok)

	state := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeAI, "cached")}
	r.mu.Lock()
	r.checkpoints["thread-1"] = state
	r.mu.Unlock()

	got, ok := r.ThreadState("thread-1")
	assert.True(t, ok)
	assert.Equal(t, state, got)

	r.Forget("thread-1")
	_, ok = r.ThreadState("thread-1")
	assert.False(t, ok)
}
