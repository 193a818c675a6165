package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"pdf-rag/internal/models"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	SimilarityL2     = "l2"
	SimilarityCosine = "cosine"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	Document DocumentConfig `yaml:"document"`
	RAG      RAGConfig      `yaml:"rag"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
}

type DocumentConfig struct {
	Path string `yaml:"path"`
}

type RAGConfig struct {
	ChunkSize       int    `yaml:"chunk_size"`
	TopK            int    `yaml:"top_k"`
	IndexPath       string `yaml:"index_path"`
	MetadataPath    string `yaml:"metadata_path"`
	Similarity      string `yaml:"similarity"`
	RebuildOnChange bool   `yaml:"rebuild_on_change"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// envOverrides are applied on top of the YAML file when set.
type envOverrides struct {
	LLMKey       string `envconfig:"GROQ_API_KEY"`
	LLMBaseURL   string `envconfig:"LLM_BASE_URL"`
	LLMModel     string `envconfig:"LLM_MODEL"`
	EmbedKey     string `envconfig:"EMBED_API_KEY"`
	EmbedBaseURL string `envconfig:"EMBED_BASE_URL"`
	EmbedModel   string `envconfig:"EMBED_MODEL"`
	IndexPath    string `envconfig:"RAG_INDEX_PATH"`
	MetadataPath string `envconfig:"RAG_METADATA_PATH"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
}

// LoadConfig reads the YAML file at path, falling back to defaults when the
// file does not exist, then applies .env and environment overrides.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}
	env.apply(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Document: DocumentConfig{Path: "./data/temp.pdf"},
		RAG: RAGConfig{
			ChunkSize:    models.DefaultChunkSize,
			TopK:         models.DefaultTopK,
			IndexPath:    "./database/index.msgpack",
			MetadataPath: "./database/metadata.json",
			Similarity:   SimilarityL2,
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "all-minilm",
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama3-8b-8192",
			Temperature: 0.7,
			TimeoutSecs: 30,
		},
		Log: LogConfig{Level: "info", Pretty: true},
	}
}

func (e envOverrides) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.LLM.Key, e.LLMKey)
	set(&cfg.LLM.BaseURL, e.LLMBaseURL)
	set(&cfg.LLM.Model, e.LLMModel)
	set(&cfg.EmbedLLM.Key, e.EmbedKey)
	set(&cfg.EmbedLLM.BaseURL, e.EmbedBaseURL)
	set(&cfg.EmbedLLM.Model, e.EmbedModel)
	set(&cfg.RAG.IndexPath, e.IndexPath)
	set(&cfg.RAG.MetadataPath, e.MetadataPath)
	set(&cfg.Log.Level, e.LogLevel)
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = models.DefaultChunkSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.RAG.Similarity == "" {
		cfg.RAG.Similarity = SimilarityL2
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderOllama
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 30
	}
}

func (c *Config) Validate() error {
	if c.RAG.ChunkSize < 0 {
		return fmt.Errorf("%w: rag.chunk_size must be positive", ErrInvalidConfig)
	}
	if c.RAG.TopK < 0 {
		return fmt.Errorf("%w: rag.top_k must be positive", ErrInvalidConfig)
	}
	if c.RAG.IndexPath == "" || c.RAG.MetadataPath == "" {
		return fmt.Errorf("%w: rag.index_path and rag.metadata_path are required", ErrInvalidConfig)
	}
	if c.RAG.IndexPath == c.RAG.MetadataPath {
		return fmt.Errorf("%w: rag.index_path and rag.metadata_path must differ", ErrInvalidConfig)
	}
	switch c.RAG.Similarity {
	case SimilarityL2, SimilarityCosine:
	default:
		return fmt.Errorf("%w: unknown rag.similarity %q", ErrInvalidConfig, c.RAG.Similarity)
	}
	switch c.EmbedLLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown embed_llm.provider %q", ErrInvalidConfig, c.EmbedLLM.Provider)
	}
	// generation only speaks the OpenAI chat completions protocol
	if c.LLM.Provider != ProviderOpenAI {
		return fmt.Errorf("%w: unsupported llm.provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.TimeoutSecs < 0 {
		return fmt.Errorf("%w: llm.timeout_secs must be positive", ErrInvalidConfig)
	}
	return nil
}
