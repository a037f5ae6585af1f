package llm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Config holds the provider endpoint configuration.
type Config struct {
	// BaseURL is an OpenAI-compatible endpoint.
	BaseURL string
	APIKey  string
	// Temperature applies to every invocation.
	Temperature float32
}

// DefaultConfig returns the default provider configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Temperature: 0.6,
	}
}

// OpenAIInvoker implements Invoker against an OpenAI-compatible endpoint.
type OpenAIInvoker struct {
	client *openai.Client
	config *Config
}

// NewOpenAIInvoker creates a new invoker.
func NewOpenAIInvoker(config *Config) *OpenAIInvoker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Temperature == 0 {
		config.Temperature = 0.6
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIInvoker{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Invoke performs one chat completion with the request's model id.
func (p *OpenAIInvoker) Invoke(ctx context.Context, request Request) (string, error) {
	if request.ModelID == "" {
		return "", errors.New("model id is required")
	}

	messages := make([]openai.ChatCompletionMessage, len(request.Messages))
	for i, msg := range request.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       request.ModelID,
		Messages:    messages,
		MaxTokens:   request.MaxTokens,
		Temperature: p.config.Temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty chat response")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Invoker = (*OpenAIInvoker)(nil)
