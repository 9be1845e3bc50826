package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gperrors "giftprobe/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientCompleteSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "value", r.Header.Get("X-Custom"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "test-model", payload["model"])
		assert.Equal(t, false, payload["stream"])
		assert.Equal(t, map[string]any{"type": "json_object"}, payload["response_format"])
		messages, _ := payload["messages"].([]any)
		assert.Len(t, messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"rationale\":\"ok\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-model", Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/",
		Timeout: 5 * time.Second,
		Headers: map[string]string{"X-Custom": "value"},
	}, nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"rationale":"ok"}`, resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, "test-model", client.Model())
}

func TestOpenAIClientCompleteStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			client, err := NewOpenAIClient("m", Config{BaseURL: server.URL}, nil)
			require.NoError(t, err)
			_, err = client.Complete(context.Background(), CompletionRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.status, gperrors.StatusCode(err))
			assert.Equal(t, tt.transient, gperrors.IsTransient(err))
		})
	}
}

func TestOpenAIClientCompleteNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("m", Config{BaseURL: server.URL}, nil)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.True(t, gperrors.IsPermanent(err))
}

func TestNewOpenAIClientRequiresModel(t *testing.T) {
	_, err := NewOpenAIClient(" ", Config{}, nil)
	require.Error(t, err)
}
