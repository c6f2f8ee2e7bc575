// Package openai implements llm.Provider over OpenAI-compatible chat completion APIs.
//
// DeepSeek and other compatible services are reached by setting BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/trinity-go/pkg/llm"
)

// Default endpoints and models per compatible flavor.
const (
	DefaultModel         = "gpt-4o-mini"
	DeepSeekBaseURL      = "https://api.deepseek.com"
	DeepSeekDefaultModel = "deepseek-chat"
)

// ErrNoChoices is returned when the API answers without any completion.
var ErrNoChoices = errors.New("no choices returned")

// Client generates text through a chat completion endpoint.
type Client struct {
	client *openai.Client
	model  string
}

// Config configures the client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// Flavor selects defaults: "openai" (default) or "deepseek".
	Flavor string
}

// NewClient creates a new chat completion client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("openai: config is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}

	model := cfg.Model
	baseURL := cfg.BaseURL
	switch strings.ToLower(cfg.Flavor) {
	case "deepseek":
		if baseURL == "" {
			baseURL = DeepSeekBaseURL
		}
		if model == "" {
			model = DeepSeekDefaultModel
		}
	case "", "openai":
	default:
		return nil, fmt.Errorf("openai: unsupported flavor %q", cfg.Flavor)
	}
	if model == "" {
		model = DefaultModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// GenerateWithMessages sends the conversation and returns the first choice.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chat,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the SDK holds no connections.
func (c *Client) Close() error {
	return nil
}
