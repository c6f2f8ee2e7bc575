package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/llm"
)

type recordingProvider struct {
	prompt string
	opts   *llm.GenerateOptions
	reply  string
	err    error
}

func (p *recordingProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	p.prompt = prompt
	p.opts = llm.ApplyGenerateOptions(opts)
	return p.reply, p.err
}

func (p *recordingProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return p.Generate(ctx, messages[len(messages)-1].Content, opts...)
}

func (p *recordingProvider) Close() error { return nil }

func TestAnswerer_Answer(t *testing.T) {
	provider := &recordingProvider{reply: "  Boil water, add eggs, wait nine minutes.\n"}
	answerer := llm.NewAnswerer(provider, nil)

	text, err := answerer.Answer(context.Background(), "eggs cook in boiling water")
	require.NoError(t, err)

	assert.Equal(t, "Boil water, add eggs, wait nine minutes.", text)
	assert.True(t, strings.HasPrefix(provider.prompt, "Using the following context"))
	assert.True(t, strings.HasSuffix(provider.prompt, "\neggs cook in boiling water"))
	assert.Equal(t, 300, provider.opts.MaxTokens)
	assert.InDelta(t, 0.7, provider.opts.Temperature, 1e-9)
}

func TestAnswerer_CustomConfig(t *testing.T) {
	provider := &recordingProvider{reply: "ok"}
	answerer := llm.NewAnswerer(provider, &llm.AnswerConfig{Prompt: "ctx=%s", MaxTokens: 50, Temperature: 0.2})

	_, err := answerer.Answer(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ctx=x", provider.prompt)
	assert.Equal(t, 50, provider.opts.MaxTokens)
}

func TestAnswerer_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	answerer := llm.NewAnswerer(&recordingProvider{err: boom}, nil)

	_, err := answerer.Answer(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestApplyGenerateOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []llm.GenerateOption
		want llm.GenerateOptions
	}{
		{"defaults", nil, llm.GenerateOptions{Temperature: 0.7, MaxTokens: 1000, TopP: 1.0}},
		{"overrides", []llm.GenerateOption{llm.WithTemperature(0.1), llm.WithMaxTokens(5), llm.WithTopP(0.5), llm.WithStop("\n")},
			llm.GenerateOptions{Temperature: 0.1, MaxTokens: 5, TopP: 0.5, Stop: []string{"\n"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *llm.ApplyGenerateOptions(tt.opts))
		})
	}
}
