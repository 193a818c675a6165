package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// Hit is one search result: the position of the matching vector (and so of
// its chunk) and its Euclidean distance to the query.
type Hit struct {
	Position int
	Distance float32
}

// DocumentEmbedder is the part of the embedding capability Build needs.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is a flat brute-force L2 index. Vectors keep their insertion order;
// position i always refers to the i-th vector added.
type Index struct {
	dim     int
	vectors [][]float32
}

// New returns an empty index. A zero dim is fixed by the first Add.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Build embeds every chunk in a single batch and indexes the vectors in chunk
// order.
func Build(ctx context.Context, chunks []string, embedder DocumentEmbedder) (*Index, error) {
	if len(chunks) == 0 {
		return nil, models.ErrEmptyIndex
	}

	vectors, err := embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", models.ErrCorruptData, len(vectors), len(chunks))
	}

	ix := New(0)
	if err := ix.Add(vectors...); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptData, err)
	}

	log.Debug().Int("vectors", ix.Len()).Int("dim", ix.Dim()).Msg("Built index")
	return ix, nil
}

// Add appends vectors. Each vector is copied. All vectors must share the
// index dimension.
func (ix *Index) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector", models.ErrDimensionMismatch)
		}
		if ix.dim == 0 {
			ix.dim = len(v)
		}
		if len(v) != ix.dim {
			return fmt.Errorf("%w: got %d, want %d", models.ErrDimensionMismatch, len(v), ix.dim)
		}
	}
	for _, v := range vectors {
		ix.vectors = append(ix.vectors, append([]float32(nil), v...))
	}
	return nil
}

func (ix *Index) Len() int {
	return len(ix.vectors)
}

func (ix *Index) Dim() int {
	return ix.dim
}

// Vector returns the stored vector at position i. The slice must not be
// modified.
func (ix *Index) Vector(i int) []float32 {
	return ix.vectors[i]
}

// Search returns the min(topK, Len()) nearest vectors by ascending Euclidean
// distance. Equal distances are ordered by lower position.
func (ix *Index) Search(query []float32, topK int) ([]Hit, error) {
	if topK <= 0 || ix.Len() == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", models.ErrDimensionMismatch, len(query), ix.dim)
	}

	type scored struct {
		pos  int
		dist float64
	}
	all := make([]scored, len(ix.vectors))
	for i, v := range ix.vectors {
		all[i] = scored{pos: i, dist: squaredL2(query, v)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].dist != all[j].dist {
			return all[i].dist < all[j].dist
		}
		return all[i].pos < all[j].pos
	})

	k := min(topK, len(all))
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = Hit{Position: all[i].pos, Distance: float32(math.Sqrt(all[i].dist))}
	}
	return hits, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
