package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/index"
	"pdf-rag/internal/models"
)

const collectionPrefix = "snapshot-"

var errContentEmbedding = errors.New("chromemdb: collection only accepts precomputed embeddings")

// CosineSearcher serves a loaded snapshot through an in-memory chromem-go
// collection, ranking by cosine similarity instead of L2 distance. Document
// IDs are the chunk positions.
type CosineSearcher struct {
	db         *chromem.DB
	collection *chromem.Collection
	ctx        context.Context
	dim        int
}

// NewCosineSearcher copies every vector of the snapshot into a fresh
// collection. Cosine similarity is undefined for a zero vector, so a snapshot
// holding one is rejected with models.ErrDimensionMismatch.
func NewCosineSearcher(ctx context.Context, s *index.Snapshot) (*CosineSearcher, error) {
	for i := 0; i < s.Index.Len(); i++ {
		if !hasDirection(s.Index.Vector(i)) {
			return nil, fmt.Errorf("%w: vector %d has no direction", models.ErrDimensionMismatch, i)
		}
	}

	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionPrefix+s.ID, map[string]string{"embedding_model": s.EmbeddingModel}, noContentEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}

	m := &CosineSearcher{db: db, collection: c, ctx: ctx, dim: s.Index.Dim()}
	if s.Index.Len() == 0 {
		return m, nil
	}

	docs := make([]chromem.Document, s.Index.Len())
	for i := range docs {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   s.Chunks[i],
			Embedding: append([]float32(nil), s.Index.Vector(i)...),
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %v", err)
	}

	log.Debug().Str("collection", c.Name).Int("documents", c.Count()).Msg("Loaded cosine collection")
	return m, nil
}

func (m *CosineSearcher) Len() int {
	return m.collection.Count()
}

// Search returns the min(topK, Len()) most similar chunks. Distance is the
// cosine distance 1 - similarity, so hits are ordered by ascending distance
// and then by position.
func (m *CosineSearcher) Search(query []float32, topK int) ([]index.Hit, error) {
	n := m.Len()
	if topK <= 0 || n == 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", models.ErrDimensionMismatch, len(query), m.dim)
	}
	if !hasDirection(query) {
		return nil, fmt.Errorf("%w: query vector has no direction", models.ErrDimensionMismatch)
	}

	// all documents are ranked so that ties at the cut are resolved by position
	results, err := m.collection.QueryEmbedding(m.ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	hits := make([]index.Hit, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: unexpected document id %q", models.ErrCorruptData, r.ID)
		}
		hits = append(hits, index.Hit{Position: pos, Distance: 1 - r.Similarity})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
	return hits[:min(topK, len(hits))], nil
}

// delete collection
func (m *CosineSearcher) Close() error {
	if err := m.db.DeleteCollection(m.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

// hasDirection reports whether v is finite with a non-zero norm.
func hasDirection(v []float32) bool {
	var sum float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		sum += f * f
	}
	return sum > 0
}

func noContentEmbedding(context.Context, string) ([]float32, error) {
	return nil, errContentEmbedding
}
