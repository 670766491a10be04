package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nijaru/yt-summary/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOllama(t *testing.T, reply string, models ...string) (*httptest.Server, *[]string) {
	t.Helper()
	var prompts []string

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompts = append(prompts, req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"x","object":"chat.completion","created":1,"model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, req.Model, reply)
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		type model struct {
			ID     string `json:"id"`
			Object string `json:"object"`
		}
		data := make([]model, 0, len(models))
		for _, m := range models {
			data = append(data, model{ID: m, Object: "model"})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL: baseURL + "/v1",
		APIKey:  "ollama",
		Model:   "llama3.2",
		Timeout: 5 * time.Second,
	}
}

func TestGenerate(t *testing.T) {
	srv, prompts := newFakeOllama(t, "a short synopsis")
	client := NewClient(testConfig(srv.URL))

	out, err := client.Generate(context.Background(), "summarize this")
	require.NoError(t, err)
	assert.Equal(t, "a short synopsis", out)
	assert.Equal(t, []string{"summarize this"}, *prompts)
}

func TestGenerateBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion with llama3.2")
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		models  []string
		wantErr bool
	}{
		{"exact", []string{"llama3.2"}, false},
		{"latest tag", []string{"mistral:latest", "llama3.2:latest"}, false},
		{"missing", []string{"mistral:latest"}, true},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFakeOllama(t, "", tt.models...)
			err := NewClient(testConfig(srv.URL)).Ping(context.Background())
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrModelNotFound))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(testConfig(url)).Ping(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrModelNotFound))
}
