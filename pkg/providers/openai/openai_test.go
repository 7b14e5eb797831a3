package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig()
	config.APIEndpoint = server.URL + "/v1/"
	config.APIKey = "test-key"
	return New(config)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "http://localhost:11434/v1", config.APIEndpoint)
	assert.Equal(t, "translategemma:12b", config.Model)
	assert.Equal(t, float32(0.1), config.Temperature)
}

func TestTranslate(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req goopenai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "translategemma:12b", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, goopenai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, "Be formal.", req.Messages[0].Content)
		assert.Equal(t, goopenai.ChatMessageRoleUser, req.Messages[1].Role)
		assert.Equal(t, "prompt text", req.Messages[1].Content)

		_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "translategemma:12b",
			Choices: []goopenai.ChatCompletionChoice{{
				Message:      goopenai.ChatCompletionMessage{Role: "assistant", Content: " Hola \n"},
				FinishReason: goopenai.FinishReasonStop,
			}},
			Usage: goopenai.Usage{PromptTokens: 8, CompletionTokens: 3, TotalTokens: 11},
		})
	})

	resp, err := provider.Translate(context.Background(), &providers.ProviderRequest{
		Text:         "Hello",
		Prompt:       "prompt text",
		SystemPrompt: "Be formal.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hola", resp.Text)
	assert.Equal(t, 8, resp.TokensIn)
	assert.Equal(t, 3, resp.TokensOut)
	assert.Equal(t, "stop", resp.Metadata["finish_reason"])
	assert.Equal(t, "openai", provider.GetName())
}

func TestTranslateWithoutSystemPrompt(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req goopenai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "from English to German")

		_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message: goopenai.ChatCompletionMessage{Role: "assistant", Content: "Hallo"},
			}},
		})
	})

	resp, err := provider.Translate(context.Background(), &providers.ProviderRequest{
		Text:           "Hello",
		SourceLanguage: "English",
		TargetLanguage: "German",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hallo", resp.Text)
}

func TestTranslateAPIErrorIsModelFailure(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	})

	_, err := provider.Translate(context.Background(), &providers.ProviderRequest{Text: "Hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrModel))
	assert.False(t, providers.IsRetryable(err))

	var perr *providers.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
	assert.Equal(t, "model not found", perr.Message)
}

func TestTranslateEmptyChoices(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{})
	})

	_, err := provider.Translate(context.Background(), &providers.ProviderRequest{Text: "Hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrModel))
}

func TestTranslateConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	config := DefaultConfig()
	config.APIEndpoint = endpoint
	provider := New(config)

	_, err := provider.Translate(context.Background(), &providers.ProviderRequest{Text: "Hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrConnection))
}

func TestHealthCheck(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   []map[string]interface{}{{"id": "translategemma:12b", "object": "model"}},
		})
	})

	assert.NoError(t, provider.HealthCheck(context.Background()))
}
