package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
)

func TestChatGPTSummarize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\" Rod \",\"description\":\"Browser automation.\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: srv.URL, Model: "gpt-test", APIKey: "secret"}, 0)
	gen, err := client.Summarize(context.Background(), "feed", strings.Repeat("x", MaxSnippetRunes+500))
	require.NoError(t, err)
	assert.Equal(t, domain.Generated{Title: "Rod", Description: "Browser automation."}, gen)

	assert.Equal(t, "gpt-test", got["model"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "Source: feed")
	assert.NotContains(t, user, strings.Repeat("x", MaxSnippetRunes+1))
}

func TestChatGPTSummarizeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: srv.URL, Model: "m", APIKey: "k"}, 0)
	_, err := client.Summarize(context.Background(), "feed", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestChatGPTMisconfigured(t *testing.T) {
	_, err := NewChatGPTClient(config.ChatGPTConfig{}, 0).Summarize(context.Background(), "s", "t")
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestDecodeGenerated(t *testing.T) {
	gen, err := decodeGenerated("```json\n{\"title\":\"T\",\"description\":\"D\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, domain.Generated{Title: "T", Description: "D"}, gen)

	_, err = decodeGenerated(`{"title":"","description":" "}`)
	assert.Error(t, err)

	_, err = decodeGenerated("not json")
	assert.Error(t, err)
}

func TestClipCountsRunes(t *testing.T) {
	assert.Equal(t, "при", clip("  привет ", 3))
	assert.Equal(t, "ok", clip("ok", 3))
}
