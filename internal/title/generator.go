// Package title derives human-readable conversation titles from the
// first user message of a thread.
package title

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/agentchat-ai/conversation-service/internal/llm"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
	"github.com/agentchat-ai/conversation-service/pkg/metrics"
)

const (
	// minMessageLength is the threshold below which generation is skipped
	// in favor of the date-stamped fallback.
	minMessageLength = 10

	// previewLength bounds how much of the message is sent to the model.
	previewLength = 200

	// maxTitleLength is the cap on derived titles.
	maxTitleLength = 50
)

// Generator produces conversation titles. Generation failures are
// non-fatal: the generator always returns a usable title.
type Generator struct {
	client  llm.Client
	timeout time.Duration
	logger  *logger.Logger
}

// NewGenerator creates a title generator. client may be nil, in which
// case derivation uses keyword extraction instead of a model.
func NewGenerator(client llm.Client, timeout time.Duration, log *logger.Logger) *Generator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Generator{
		client:  client,
		timeout: timeout,
		logger:  log,
	}
}

// Generate derives a short descriptive title from the first user message.
// It never fails; on any problem it returns the fallback title.
func (g *Generator) Generate(ctx context.Context, firstMessage string) string {
	firstMessage = strings.TrimSpace(firstMessage)
	if len(firstMessage) < minMessageLength {
		metrics.TitleGenerationsTotal.WithLabelValues("fallback").Inc()
		return Fallback()
	}
	if g.client == nil {
		metrics.TitleGenerationsTotal.WithLabelValues("keywords").Inc()
		return FromKeywords(firstMessage)
	}

	preview := firstMessage
	if len(preview) > previewLength {
		preview = preview[:previewLength] + "..."
	}

	prompt := fmt.Sprintf(`Based on this user message, generate a concise title (maximum 6 words) for a conversation. The title should capture the main topic or intent.

User message: %q

Title:`, preview)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Complete(ctx, &llm.CompletionRequest{
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   32,
		Temperature: 0.3,
	})
	if err != nil {
		g.logger.Warn("title generation failed, using fallback", zap.Error(err))
		metrics.TitleGenerationsTotal.WithLabelValues("error").Inc()
		return Fallback()
	}

	t := Clean(resp.Content)
	if len(t) < 3 {
		metrics.TitleGenerationsTotal.WithLabelValues("fallback").Inc()
		return Fallback()
	}

	metrics.TitleGenerationsTotal.WithLabelValues("generated").Inc()
	return t
}

// Clean strips quoting and label artifacts from model output and
// enforces the length cap.
func Clean(raw string) string {
	t := strings.TrimSpace(raw)
	t = strings.Trim(t, `"'`)
	if idx := strings.Index(strings.ToLower(t), "title:"); idx == 0 {
		t = strings.TrimSpace(t[len("title:"):])
		t = strings.Trim(t, `"'`)
	}
	if len(t) > maxTitleLength {
		cut := maxTitleLength - 3
		// Back up to a rune boundary so multi-byte characters are never
		// split mid-sequence.
		for cut > 0 && !utf8.RuneStart(t[cut]) {
			cut--
		}
		t = t[:cut] + "..."
	}
	return t
}

// Fallback returns the date-stamped default title.
func Fallback() string {
	return "Chat - " + time.Now().Format("1/2/2006")
}

// FromKeywords builds a title from the longest words of the message.
// Used by Generate when no model is configured.
func FromKeywords(message string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' {
			return r
		}
		return ' '
	}, strings.ToLower(message))

	var words []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 3 {
			words = append(words, strings.ToUpper(w[:1])+w[1:])
		}
		if len(words) == 4 {
			break
		}
	}
	if len(words) == 0 {
		return Fallback()
	}
	return strings.Join(words, " ")
}
