package rag

import (
	"context"
	"fmt"

	"pdf-rag/internal/index"
	"pdf-rag/internal/models"
)

// Searcher ranks stored vectors against a query vector. *index.Index and
// *chromemdb.CosineSearcher both implement it.
type Searcher interface {
	Search(query []float32, topK int) ([]index.Hit, error)
	Len() int
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retrieve embeds query once and returns the text of the topK nearest chunks,
// nearest first. An empty searcher is models.ErrEmptyIndex and the embedder
// is not called.
func Retrieve(ctx context.Context, query string, embedder QueryEmbedder, searcher Searcher, chunks []string, topK int) ([]string, error) {
	if searcher.Len() == 0 {
		return nil, models.ErrEmptyIndex
	}

	vec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := searcher.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(chunks) {
			return nil, fmt.Errorf("%w: hit position %d outside %d chunks", models.ErrCorruptData, h.Position, len(chunks))
		}
		out = append(out, chunks[h.Position])
	}
	return out, nil
}
