package llm

import (
	"context"
	"fmt"
	"strings"
)

// DefaultAnswerPrompt frames the evidence context for answer synthesis.
const DefaultAnswerPrompt = "Using the following context, generate a comprehensive, detailed, and accurate answer " +
	"to the user's query. Make sure to include all relevant steps and information if applicable:\n%s"

// AnswerConfig configures an Answerer.
type AnswerConfig struct {
	// Prompt is a format string with one %s for the context (optional).
	Prompt string

	// Temperature is the sampling temperature (default 0.7).
	Temperature float64

	// MaxTokens bounds the answer length (default 300).
	MaxTokens int
}

// Answerer turns an evidence context into an answer using a Provider.
//
// The answer is returned as produced. A degenerate model may echo its input;
// the caller's quality gate decides what to accept.
type Answerer struct {
	provider Provider
	config   AnswerConfig
}

// NewAnswerer creates an Answerer over provider.
func NewAnswerer(provider Provider, cfg *AnswerConfig) *Answerer {
	config := AnswerConfig{}
	if cfg != nil {
		config = *cfg
	}
	if config.Prompt == "" {
		config.Prompt = DefaultAnswerPrompt
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 300
	}
	return &Answerer{provider: provider, config: config}
}

// Answer generates an answer from contextText.
func (a *Answerer) Answer(ctx context.Context, contextText string) (string, error) {
	prompt := fmt.Sprintf(a.config.Prompt, contextText)

	text, err := a.provider.Generate(ctx, prompt,
		WithTemperature(a.config.Temperature),
		WithMaxTokens(a.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	return strings.TrimSpace(text), nil
}
