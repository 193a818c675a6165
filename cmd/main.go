package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/index"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/rag"
)

const configFilePath = "./configs/config.yaml"

func main() {
	setupLogger(config.LogConfig{Level: "info", Pretty: true})

	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	filePath := flag.String("file", "", "Path to the document file (defaults to document.path from the config)")
	query := flag.String("query", "", "Query to be answered")
	rebuild := flag.Bool("rebuild", false, "Rebuild the index even if one exists")
	dryRun := flag.Bool("dry-run", false, "Dry run, print the chunks without embedding or saving them")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setupLogger(cfg.Log)
	log.Debug().Str("config", *configPath).Int("chunk_size", cfg.RAG.ChunkSize).Int("top_k", cfg.RAG.TopK).
		Str("similarity", cfg.RAG.Similarity).Str("llm_model", cfg.LLM.Model).Msg("Loaded config")

	docPath := resolveDocument(*filePath, cfg.Document.Path)
	ctx := context.Background()

	if *dryRun {
		printChunks(cfg, docPath)
		return
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	var generator llmservice.Generator
	if *query != "" {
		generator, err = llmservice.NewClient(&cfg.LLM)
		if err != nil {
			log.Fatal().Err(err).Msg("Error initializing LLM client")
		}
	}

	if docPath == "" && !index.Exists(cfg.RAG.IndexPath, cfg.RAG.MetadataPath) {
		log.Fatal().Str("index", cfg.RAG.IndexPath).Str("metadata", cfg.RAG.MetadataPath).
			Msg("No index yet, provide a document with -file")
	}

	r := rag.NewRAG(cfg, parser.NewDocumentParser(), embedder, generator)

	if *rebuild {
		if docPath == "" {
			log.Fatal().Msg("Please provide a document file using the -file flag to rebuild the index")
		}
		if _, err := r.Rebuild(ctx, docPath); err != nil {
			fatal(err, "Error rebuilding index")
		}
	}

	if *query == "" {
		if _, err := r.EnsureIndex(ctx, docPath); err != nil {
			fatal(err, "Error preparing index")
		}
		return
	}

	response, err := r.Ask(ctx, docPath, *query)
	if err != nil {
		fatal(err, "Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for i, src := range response.Sources {
		fmt.Printf("[%d] %s\n\n", i+1, src)
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	if response.Empty {
		fmt.Printf("(the model returned no answer)\n\n")
		return
	}
	fmt.Printf("%s\n\n", response.Content)
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
}

// resolveDocument prefers the -file flag. The configured document is only
// used when it exists, so a pure query run does not fail on a missing default.
func resolveDocument(flagPath, configured string) string {
	if flagPath != "" {
		return flagPath
	}
	if configured == "" {
		return ""
	}
	if _, err := os.Stat(configured); err != nil {
		log.Debug().Str("file", configured).Msg("Configured document not found, running in query-only mode")
		return ""
	}
	return configured
}

func printChunks(cfg *config.Config, docPath string) {
	if docPath == "" {
		log.Fatal().Msg("Please provide a document file using the -file flag")
	}
	r := rag.NewRAG(cfg, parser.NewDocumentParser(), nil, nil)
	chunks, err := r.Chunks(docPath)
	if err != nil {
		fatal(err, "Error parsing document")
	}
	log.Info().Int("chunks", len(chunks)).Bool("indexed", index.Exists(cfg.RAG.IndexPath, cfg.RAG.MetadataPath)).
		Msg("Parsed content")
	helper.PrettyPrint(chunks)
}

func fatal(err error, msg string) {
	event := log.Fatal().Err(err)
	var remote *models.RemoteError
	if errors.As(err, &remote) {
		event = event.Int("status", remote.StatusCode).Bool("auth", remote.IsAuth()).Bool("temporary", remote.Temporary())
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		msg += ": no index yet, provide a document with -file"
	case errors.Is(err, models.ErrCorruptData):
		msg += ": index and metadata do not match, run again with -rebuild"
	}
	event.Msg(msg)
}
