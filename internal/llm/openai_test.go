package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, status int, body string, seen func(*http.Request, chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			seen(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_Success(t *testing.T) {
	var got chatRequest
	var auth string
	srv := completionServer(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"  Great launch, congrats!  "}}]}`,
		func(r *http.Request, req chatRequest) {
			got = req
			auth = r.Header.Get("Authorization")
		})

	c := NewOpenAIClient(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"}, zap.NewNop())
	text, err := c.Complete(context.Background(), CompletionRequest{System: "be nice", User: `Post caption: "hi"`})
	require.NoError(t, err)

	assert.Equal(t, "Great launch, congrats!", text)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, DefaultTemperature, got.Temperature, 0.001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be nice", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{"choices":[]}`, nil)
	c := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"}, zap.NewNop())

	_, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
	require.ErrorIs(t, err, errEmptyCompletion)
}

func TestComplete_UpstreamError(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError,
		`{"error":{"message":"boom","type":"server_error"}}`, nil)
	c := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"}, zap.NewNop())

	_, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create chat completion")
}

func TestFactory_MissingCredential(t *testing.T) {
	f := NewFactory(map[string]ProviderConfig{"openrouter": {APIKey: "or-key"}}, zap.NewNop())

	_, err := f.Client("openai", "")
	require.ErrorIs(t, err, ErrMissingCredential)

	// Unknown provider falls back to the default one, which has no key.
	_, err = f.Client("nope", "")
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestFactory_DefaultsAndAttributionHeaders(t *testing.T) {
	var got chatRequest
	var referrer, title string
	srv := completionServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`,
		func(r *http.Request, req chatRequest) {
			got = req
			referrer = r.Header.Get("HTTP-Referer")
			title = r.Header.Get("X-Title")
		})

	f := NewFactory(map[string]ProviderConfig{
		"openrouter": {APIKey: "or-key", BaseURL: srv.URL + "/v1", Referrer: "https://example.com", Title: "commentgen"},
	}, zap.NewNop())

	c, err := f.Client("OpenRouter", "")
	require.NoError(t, err)
	text, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
	require.NoError(t, err)

	assert.Equal(t, "ok", text)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, "https://example.com", referrer)
	assert.Equal(t, "commentgen", title)
}
