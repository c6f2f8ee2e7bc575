package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/llm/openai"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := openai.NewClient(nil)
	assert.Error(t, err)

	_, err = openai.NewClient(&openai.Config{})
	assert.Error(t, err)

	_, err = openai.NewClient(&openai.Config{APIKey: "k", Flavor: "qwen"})
	assert.Error(t, err)

	_, err = openai.NewClient(&openai.Config{APIKey: "k", Flavor: "deepseek"})
	assert.NoError(t, err)
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"answer"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client, err := openai.NewClient(&openai.Config{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
}

func TestClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer srv.Close()

	client, err := openai.NewClient(&openai.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, openai.ErrNoChoices)
}
