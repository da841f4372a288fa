package title

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/agentchat-ai/conversation-service/internal/llm"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

type stubClient struct {
	content string
	err     error
}

func (s *stubClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func (s *stubClient) Name() string { return "stub" }

func TestGenerateUsesModelOutput(t *testing.T) {
	g := NewGenerator(&stubClient{content: "Weather Forecast Chat"}, time.Second, logger.NewNop())
	got := g.Generate(context.Background(), "What's the weather like today in general conversation testing")
	assert.Equal(t, "Weather Forecast Chat", got)
}

func TestGenerateShortMessageFallsBack(t *testing.T) {
	g := NewGenerator(&stubClient{content: "Should Not Be Used"}, time.Second, logger.NewNop())
	got := g.Generate(context.Background(), "hi")
	assert.Equal(t, Fallback(), got)
}

func TestGenerateNilClientUsesKeywords(t *testing.T) {
	g := NewGenerator(nil, time.Second, logger.NewNop())
	got := g.Generate(context.Background(), "a perfectly reasonable first message")
	assert.Equal(t, "Perfectly Reasonable First Message", got)
}

func TestGenerateNilClientShortMessageFallsBack(t *testing.T) {
	g := NewGenerator(nil, time.Second, logger.NewNop())
	got := g.Generate(context.Background(), "hey")
	assert.Equal(t, Fallback(), got)
}

func TestGenerateModelErrorFallsBack(t *testing.T) {
	g := NewGenerator(&stubClient{err: errors.New("rate limited")}, time.Second, logger.NewNop())
	got := g.Generate(context.Background(), "a perfectly reasonable first message")
	assert.Equal(t, Fallback(), got)
}

func TestGenerateTooShortResultFallsBack(t *testing.T) {
	g := NewGenerator(&stubClient{content: "ab"}, time.Second, logger.NewNop())
	got := g.Generate(context.Background(), "a perfectly reasonable first message")
	assert.Equal(t, Fallback(), got)
}

func TestCleanStripsArtifacts(t *testing.T) {
	cases := map[string]string{
		`"Quoted Title"`:        "Quoted Title",
		`Title: Planning Trip`:  "Planning Trip",
		`title: "Nested Quote"`: "Nested Quote",
		"  Padded  ":            "Padded",
	}
	for in, want := range cases {
		assert.Equal(t, want, Clean(in), "input %q", in)
	}
}

func TestCleanEnforcesLengthCap(t *testing.T) {
	long := strings.Repeat("word ", 30)
	got := Clean(long)
	assert.LessOrEqual(t, len(got), maxTitleLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestCleanTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("日本語のタイトル", 10)
	got := Clean(long)
	assert.LessOrEqual(t, len(got), maxTitleLength)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFallbackEmbedsDate(t *testing.T) {
	got := Fallback()
	assert.True(t, strings.HasPrefix(got, "Chat - "))
	assert.Contains(t, got, time.Now().Format("1/2/2006"))
}

func TestFromKeywords(t *testing.T) {
	got := FromKeywords("please help me plan a birthday party")
	assert.Equal(t, "Please Help Plan Birthday", got)

	assert.Equal(t, Fallback(), FromKeywords("a b c"))
}
