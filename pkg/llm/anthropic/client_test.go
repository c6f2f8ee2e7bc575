package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/llm"
	"github.com/oceanbase/trinity-go/pkg/llm/anthropic"
)

func TestClient_GenerateWithMessages(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Go is "},{"type":"tool_use","id":"x"},{"type":"text","text":"a language."}]}`))
	}))
	defer srv.Close()

	client, err := anthropic.NewClient(&anthropic.Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := client.GenerateWithMessages(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "Answer briefly."},
		{Role: llm.RoleUser, Content: "what is go"},
	}, llm.WithMaxTokens(64), llm.WithStop("\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "Go is a language.", text)

	assert.Equal(t, "Answer briefly.", got["system"])
	assert.EqualValues(t, 64, got["max_tokens"])
	assert.Equal(t, anthropic.DefaultModel, got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestClient_Errors(t *testing.T) {
	_, err := anthropic.NewClient(&anthropic.Config{})
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	client, err := anthropic.NewClient(&anthropic.Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid x-api-key")

	_, err = client.GenerateWithMessages(context.Background(), []llm.Message{{Role: llm.RoleSystem, Content: "only system"}})
	assert.Error(t, err)
}
