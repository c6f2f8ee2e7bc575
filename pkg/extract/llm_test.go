package extract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/extract"
	"github.com/oceanbase/trinity-go/pkg/llm"
)

type stubProvider struct {
	reply    string
	err      error
	messages []llm.Message
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return s.GenerateWithMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (s *stubProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	s.messages = messages
	return s.reply, s.err
}

func (s *stubProvider) Close() error { return nil }

func TestLLMExtractor_ParsesFencedJSON(t *testing.T) {
	provider := &stubProvider{reply: "Sure!\n```json\n{\"persons\":[\"Alice\"],\"locations\":[\"Tokyo\"]}\n```"}
	ex := extract.NewLLMExtractor(provider, nil, zerolog.Nop())

	ents, err := ex.Extract(context.Background(), "meet Alice in Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "Alice", ents.FirstPerson())
	assert.Equal(t, "Tokyo", ents.FirstLocation())

	require.Len(t, provider.messages, 2)
	assert.Equal(t, llm.RoleSystem, provider.messages[0].Role)
	assert.Contains(t, provider.messages[1].Content, "meet Alice in Tokyo")
}

func TestLLMExtractor_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{"provider error", &stubProvider{err: errors.New("down")}},
		{"invalid json", &stubProvider{reply: "I cannot do that"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := extract.NewLLMExtractor(tt.provider, extract.NewRuleExtractor(), zerolog.Nop())
			ents, err := ex.Extract(context.Background(), "set an appointment with John")
			require.NoError(t, err)
			assert.Equal(t, "John", ents.FirstPerson())

			_, err = extract.NewLLMExtractor(tt.provider, nil, zerolog.Nop()).Extract(context.Background(), "x")
			assert.Error(t, err)
		})
	}
}
