package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"video-rag-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_FoldsPartsIntoOneMessage(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"a bar chart"},"done":true}`))
	}))
	defer server.Close()

	out, err := NewOllamaProvider(server.URL).Invoke(context.Background(), "", llm.NewRequest("llava", []llm.Part{
		llm.Image([]byte("img"), ""),
		llm.Text("what is this?"),
	}))
	require.NoError(t, err)
	assert.Equal(t, "a bar chart", out)

	require.Len(t, got.Messages, 1)
	assert.Equal(t, "what is this?", got.Messages[0].Content)
	assert.Equal(t, []string{"aW1n"}, got.Messages[0].Images)
	assert.False(t, got.Stream)
}

func TestInvoke_SendsZeroTemperature(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"AGREE"},"done":true}`))
	}))
	defer server.Close()

	_, err := NewOllamaProvider(server.URL).Invoke(context.Background(), "",
		llm.NewRequest("llava", []llm.Part{llm.Text("judge")}, llm.WithTemperature(0)))
	require.NoError(t, err)

	options, ok := got["options"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, options, "temperature")
	assert.Equal(t, float64(0), options["temperature"])
}
