package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "test-model",
			"content": [{"type": "text", "text": "{\"severity\":"}, {"type": "text", "text": "\"P3\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(AnthropicOptions{APIKey: "k", BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), Request{System: "sys", User: "payload", MaxTokens: 256, Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"severity":"P3"}`, out)
	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 256, got["max_tokens"])
	assert.InDelta(t, 0.1, got["temperature"], 1e-9)
}

func TestAnthropicClientClassifiesThrottling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(AnthropicOptions{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{User: "x"})
	require.Error(t, err)
	assert.True(t, IsThrottled(err))
}

func TestNewAnthropicClientRequiresModel(t *testing.T) {
	_, err := NewAnthropicClient(AnthropicOptions{})
	require.Error(t, err)
}
