package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bizflow/autopilot/pkg/ai"
	"github.com/stretchr/testify/assert"
)

func TestNewCompletionClient(t *testing.T) {
	t.Run("missing API key is fatal", func(t *testing.T) {
		_, err := ai.NewCompletionClient(ai.ClientConfig{})
		assert.ErrorIs(t, err, ai.ErrMissingAPIKey)
	})

	t.Run("invalid base URL", func(t *testing.T) {
		_, err := ai.NewCompletionClient(ai.ClientConfig{APIKey: "key", BaseURL: "ftp://nope"})
		assert.Error(t, err)
	})

	t.Run("valid config", func(t *testing.T) {
		client, err := ai.NewCompletionClient(ai.ClientConfig{APIKey: "key"})
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestComplete(t *testing.T) {
	t.Run("sends one JSON-object request and returns raw content", func(t *testing.T) {
		var gotBody map[string]interface{}
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"choices":[{"message":{"content":"{\"risk_level\":\"low\"}"}}]}`))
		}))
		defer srv.Close()

		client, err := ai.NewCompletionClient(ai.ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
		assert.NoError(t, err)

		content, err := client.Complete(context.Background(), ai.FastModel(), "system prompt", "user prompt")
		assert.NoError(t, err)
		assert.Equal(t, `{"risk_level":"low"}`, content)

		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, ai.FastModel().Name, gotBody["model"])
		assert.Equal(t, float64(1024), gotBody["max_tokens"])
		assert.Equal(t, 0.3, gotBody["temperature"])
		format := gotBody["response_format"].(map[string]interface{})
		assert.Equal(t, "json_object", format["type"])
		messages := gotBody["messages"].([]interface{})
		assert.Len(t, messages, 2)
	})

	t.Run("non-2xx surfaces as HTTPError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client, err := ai.NewCompletionClient(ai.ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
		assert.NoError(t, err)

		_, err = client.Complete(context.Background(), ai.FastModel(), "s", "u")
		var httpErr *ai.HTTPError
		assert.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
		assert.True(t, ai.IsTransient(err))
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		client, err := ai.NewCompletionClient(ai.ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
		assert.NoError(t, err)

		_, err = client.Complete(context.Background(), ai.FastModel(), "s", "u")
		assert.Error(t, err)
	})

	t.Run("API error payload is surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
		}))
		defer srv.Close()

		client, err := ai.NewCompletionClient(ai.ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
		assert.NoError(t, err)

		_, err = client.Complete(context.Background(), ai.FastModel(), "s", "u")
		assert.ErrorContains(t, err, "model overloaded")
	})
}

func TestIsTransient(t *testing.T) {
	assert.False(t, ai.IsTransient(nil))
	assert.False(t, ai.IsTransient(ai.ErrMissingAPIKey))
	assert.True(t, ai.IsTransient(&ai.HTTPError{StatusCode: 500}))
}
