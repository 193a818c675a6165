package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

func TestLangchainEmbedder_EmbedDocuments(t *testing.T) {
	var seen []string
	client := embeddings.EmbedderClientFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		seen = append(seen, texts...)
		out := make([][]float32, len(texts))
		for i, s := range texts {
			out[i] = []float32{float32(len(s)), 1}
		}
		return out, nil
	})

	e, err := NewFromClient(client, "fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", e.Model())

	input := []string{"ab", "line\nbreak"}
	vectors, err := e.EmbedDocuments(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{2, 1}, {10, 1}}, vectors)
	assert.Equal(t, "line\nbreak", input[1], "caller slice must not be rewritten")
	assert.Equal(t, []string{"ab", "line break"}, seen)
}

func TestLangchainEmbedder_EmbedQuery(t *testing.T) {
	client := embeddings.EmbedderClientFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{0.5, 0.25}}, nil
	})
	e, err := NewFromClient(client, "fake")
	require.NoError(t, err)

	v, err := e.EmbedQuery(context.Background(), "what?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, v)
}

func TestLangchainEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client embeddings.EmbedderClientFunc
	}{
		{
			name: "client failure",
			client: func(ctx context.Context, texts []string) ([][]float32, error) {
				return nil, errors.New("connection refused")
			},
		},
		{
			name: "short response",
			client: func(ctx context.Context, texts []string) ([][]float32, error) {
				return [][]float32{{1}}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewFromClient(tt.client, "fake")
			require.NoError(t, err)

			_, err = e.EmbedDocuments(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrEmbedding)

			var remote *models.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Zero(t, remote.StatusCode)
			assert.True(t, remote.Temporary())
		})
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req struct {
			Prompt string `json:"prompt"`
			Model  string `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{float32(len(req.Prompt)), 0}})
	}))
	defer srv.Close()

	e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOllama, BaseURL: srv.URL, Model: "all-minilm"})
	require.NoError(t, err)

	vectors, err := e.EmbedDocuments(context.Background(), []string{"one", "three"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 0}, {5, 0}}, vectors)
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOllama, BaseURL: srv.URL, Model: "all-minilm"})
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "hello")
	var remote *models.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusServiceUnavailable, remote.StatusCode)
	assert.Contains(t, remote.Message, "model is loading")
	assert.True(t, remote.Temporary())
}

func TestOpenAIEmbedder_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-bad", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(&config.LLMConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  srv.URL,
		Key:      "sk-bad",
		Model:    "text-embedding-3-small",
	})
	require.NoError(t, err)

	_, err = e.EmbedDocuments(context.Background(), []string{"hello"})
	var remote *models.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.True(t, remote.IsAuth())
	assert.False(t, remote.Temporary())
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "spago"})
	assert.Error(t, err)
}
