package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// Embedder maps text to fixed-dimension vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// LangchainEmbedder adapts a langchaingo embedder. Failures are reported as
// *models.RemoteError with Kind models.ErrEmbedding.
type LangchainEmbedder struct {
	mu     sync.Mutex
	impl   *embeddings.EmbedderImpl
	model  string
	status *statusRecorder
}

// NewEmbedder picks the langchaingo backend named by cfg.Provider.
func NewEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return NewOllamaEmbedder(cfg)
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Initializing ollama embedder")

	rec := newStatusRecorder(nil)
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(httpClient(cfg, rec)),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama embedder: %w", err)
	}
	return newLangchainEmbedder(llm, cfg.Model, rec)
}

// NewOpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint.
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Initializing openai embedder")

	rec := newStatusRecorder(nil)
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(httpClient(cfg, rec)),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai embedder: %w", err)
	}
	return newLangchainEmbedder(llm, cfg.Model, rec)
}

// NewFromClient wraps an arbitrary langchaingo embedding client.
func NewFromClient(client embeddings.EmbedderClient, model string) (*LangchainEmbedder, error) {
	return newLangchainEmbedder(client, model, nil)
}

func newLangchainEmbedder(client embeddings.EmbedderClient, model string, rec *statusRecorder) (*LangchainEmbedder, error) {
	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &LangchainEmbedder{impl: impl, model: model, status: rec}, nil
}

func (e *LangchainEmbedder) Model() string {
	return e.model
}

// EmbedDocuments returns one vector per text, in input order.
func (e *LangchainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// langchaingo rewrites the slice in place when stripping newlines
	in := make([]string, len(texts))
	copy(in, texts)

	e.status.reset()
	start := time.Now()
	vectors, err := e.impl.EmbedDocuments(ctx, in)
	if err != nil {
		return nil, e.remoteError(err)
	}
	if len(vectors) != len(texts) {
		return nil, &models.RemoteError{
			Kind:    models.ErrEmbedding,
			Message: fmt.Sprintf("got %d vectors for %d texts", len(vectors), len(texts)),
		}
	}

	log.Debug().Int("texts", len(texts)).Dur("took", time.Since(start)).Msg("Embedded documents")
	return vectors, nil
}

func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, &models.RemoteError{Kind: models.ErrEmbedding, Message: "empty query embedding"}
	}
	return vectors[0], nil
}

func (e *LangchainEmbedder) remoteError(err error) error {
	var remote *models.RemoteError
	if errors.As(err, &remote) {
		return err
	}
	return &models.RemoteError{
		Kind:       models.ErrEmbedding,
		StatusCode: e.status.last(),
		Message:    err.Error(),
		Err:        err,
	}
}

func httpClient(cfg *config.LLMConfig, rec *statusRecorder) *http.Client {
	c := &http.Client{Transport: rec}
	if cfg.TimeoutSecs > 0 {
		c.Timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return c
}

// statusRecorder remembers the first HTTP error status seen since the last
// reset. Neither langchaingo backend exposes it on the returned error.
type statusRecorder struct {
	mu   sync.Mutex
	next http.RoundTripper
	code int
}

func newStatusRecorder(next http.RoundTripper) *statusRecorder {
	if next == nil {
		next = http.DefaultTransport
	}
	return &statusRecorder{next: next}
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.next.RoundTrip(req)
	if err == nil && resp.StatusCode >= http.StatusBadRequest {
		s.mu.Lock()
		if s.code == 0 {
			s.code = resp.StatusCode
		}
		s.mu.Unlock()
	}
	return resp, err
}

func (s *statusRecorder) reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.code = 0
	s.mu.Unlock()
}

func (s *statusRecorder) last() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}
