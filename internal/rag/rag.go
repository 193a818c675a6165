package rag

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/index"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

var ErrNoGenerator = errors.New("no answer generator configured")

// RAG wires ingestion and querying over one snapshot location.
type RAG struct {
	cfg       *config.Config
	parser    parser.Parser
	embedder  embedding.Embedder
	generator llmservice.Generator
}

// NewRAG returns an orchestrator. generator may be nil when only ingestion is
// needed.
func NewRAG(cfg *config.Config, p parser.Parser, embedder embedding.Embedder, generator llmservice.Generator) *RAG {
	return &RAG{cfg: cfg, parser: p, embedder: embedder, generator: generator}
}

// EnsureIndex loads the persisted snapshot, building it from docPath when it
// does not exist yet. A missing snapshot with no docPath and a corrupt
// snapshot are returned as errors.
func (r *RAG) EnsureIndex(ctx context.Context, docPath string) (*index.Snapshot, error) {
	snap, err := index.Load(r.cfg.RAG.IndexPath, r.cfg.RAG.MetadataPath)
	switch {
	case err == nil:
		if r.stale(snap, docPath) && r.cfg.RAG.RebuildOnChange {
			log.Info().Str("file", docPath).Msg("Source document changed, rebuilding index")
			return r.Rebuild(ctx, docPath)
		}
		log.Info().Str("snapshot", snap.ID).Int("chunks", len(snap.Chunks)).Msg("Loaded index")
		return snap, nil
	case errors.Is(err, models.ErrNotFound) && docPath != "":
		log.Info().Err(err).Str("file", docPath).Msg("No index found, building one")
		return r.Rebuild(ctx, docPath)
	default:
		return nil, err
	}
}

// stale reports whether docPath no longer matches the digest recorded in the
// snapshot. It only warns unless rebuild_on_change is set.
func (r *RAG) stale(snap *index.Snapshot, docPath string) bool {
	if docPath == "" || snap.SourceDigest == "" {
		return false
	}
	digest, err := helper.FileDigest(docPath)
	if err != nil {
		log.Warn().Err(err).Str("file", docPath).Msg("Cannot hash source document")
		return false
	}
	if digest == snap.SourceDigest {
		return false
	}
	if !r.cfg.RAG.RebuildOnChange {
		log.Warn().Str("file", docPath).Str("snapshot", snap.ID).
			Msg("Source document differs from the indexed one, index may be stale")
	}
	return true
}

// Chunks extracts docPath and splits it with the configured chunk size.
func (r *RAG) Chunks(docPath string) ([]string, error) {
	text, err := r.parser.Extract(docPath)
	if err != nil {
		return nil, err
	}
	chunks := parser.ChunkWords(text, r.cfg.RAG.ChunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s: no words", models.ErrExtraction, docPath)
	}
	return chunks, nil
}

// Rebuild ingests docPath unconditionally and replaces the persisted snapshot.
func (r *RAG) Rebuild(ctx context.Context, docPath string) (*index.Snapshot, error) {
	chunks, err := r.Chunks(docPath)
	if err != nil {
		return nil, err
	}
	digest, err := helper.FileDigest(docPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}
	log.Info().Str("file", docPath).Int("chunks", len(chunks)).Msg("Embedding chunks")

	ix, err := index.Build(ctx, chunks, r.embedder)
	if err != nil {
		return nil, err
	}

	snap := &index.Snapshot{
		Index:          ix,
		Chunks:         chunks,
		SourcePath:     docPath,
		SourceDigest:   digest,
		ChunkSize:      r.cfg.RAG.ChunkSize,
		EmbeddingModel: r.embedder.Model(),
	}
	if err := index.Persist(snap, r.cfg.RAG.IndexPath, r.cfg.RAG.MetadataPath); err != nil {
		return nil, err
	}
	return snap, nil
}

// Query answers query from snap.
func (r *RAG) Query(ctx context.Context, snap *index.Snapshot, query string) (*models.PromptResponse, error) {
	if r.generator == nil {
		return nil, ErrNoGenerator
	}
	if snap.EmbeddingModel != "" && snap.EmbeddingModel != r.embedder.Model() {
		log.Warn().Str("indexed_with", snap.EmbeddingModel).Str("querying_with", r.embedder.Model()).
			Msg("Embedding model differs from the one used to build the index")
	}

	searcher, err := r.searcher(ctx, snap)
	if err != nil {
		return nil, err
	}
	if c, ok := searcher.(io.Closer); ok {
		defer c.Close()
	}

	chunks, err := Retrieve(ctx, query, r.embedder, searcher, snap.Chunks, r.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("retrieved", len(chunks)).Str("similarity", r.cfg.RAG.Similarity).Msg("Retrieved context")

	answer, err := r.generator.Generate(ctx, BuildPrompt(query, chunks))
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Sources: chunks,
		Content: answer.Content,
		Empty:   answer.Empty,
	}, nil
}

// Ask makes sure an index exists for docPath and answers query from it.
func (r *RAG) Ask(ctx context.Context, docPath, query string) (*models.PromptResponse, error) {
	snap, err := r.EnsureIndex(ctx, docPath)
	if err != nil {
		return nil, err
	}
	return r.Query(ctx, snap, query)
}

func (r *RAG) searcher(ctx context.Context, snap *index.Snapshot) (Searcher, error) {
	if r.cfg.RAG.Similarity != config.SimilarityCosine {
		return snap.Index, nil
	}
	return chromemdb.NewCosineSearcher(ctx, snap)
}
