package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Message is one chat message sent to a completion provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options carries per-call sampling settings. A nil Options means provider
// defaults.
type Options struct {
	MaxTokens     int
	Temperature   float32
	StopSequences []string
}

// CompletionProvider defines the interface for chat completion backends.
type CompletionProvider interface {
	Complete(ctx context.Context, messages []Message, opts *Options) (string, error)
}

// NewProvider creates the appropriate completion provider based on config.
func NewProvider(providerName, apiKey, model string) (CompletionProvider, error) {
	providerName = strings.ToLower(providerName)
	switch providerName {
	case "openai", "":
		if model == "" {
			model = openai.GPT4o
		}
		return &OpenAIProvider{client: openai.NewClient(apiKey), model: model}, nil
	default:
		return nil, fmt.Errorf("unknown completion provider: %s", providerName)
	}
}

// ==========================================
// OpenAI Provider
// ==========================================

type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts *Options) (string, error) {
	req := openai.ChatCompletionRequest{Model: p.model}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if opts != nil {
		req.MaxTokens = opts.MaxTokens
		req.Temperature = opts.Temperature
		req.Stop = opts.StopSequences
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
