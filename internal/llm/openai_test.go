package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blingmoon/stepchain/internal/logging"
	"github.com/blingmoon/stepchain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseChunk(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": content}}},
	}
	b, _ := json.Marshal(payload)
	return fmt.Sprintf("data: %s\n\n", b)
}

func TestOpenAIGenerator(t *testing.T) {
	var request map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&request)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"", "【問題】", "穴埋め"} {
			fmt.Fprint(w, sseChunk(chunk))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL + "/v1/", APIKey: "test", Timeout: 5 * time.Second})
	generator := NewOpenAIGenerator(client, "gpt-4o", "quiz-generator", "あなたはクイズ作成の専門家です", logging.Discard())
	assert.Equal(t, "quiz-generator", generator.Name())

	text, err := GenerateText(context.Background(), generator, "記事", nil)
	require.NoError(t, err)
	assert.Equal(t, "【問題】穴埋め", text)

	messages, ok := request["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "記事", messages[1].(map[string]any)["content"])
	assert.Equal(t, true, request["stream"])
}

func TestOpenAIGeneratorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL + "/v1", APIKey: "test"})
	generator := NewOpenAIGenerator(client, "gpt-4o", "quiz-integrator", "", logging.Discard())
	_, err := GenerateText(context.Background(), generator, "x", nil)
	require.ErrorIs(t, err, workflow.ErrExternalCall)
}
