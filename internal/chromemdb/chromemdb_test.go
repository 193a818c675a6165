package chromemdb

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/index"
	"pdf-rag/internal/models"
)

func newSnapshot(t *testing.T, vectors ...[]float32) *index.Snapshot {
	t.Helper()
	ix := index.New(0)
	require.NoError(t, ix.Add(vectors...))
	chunks := make([]string, len(vectors))
	for i := range chunks {
		chunks[i] = "chunk"
	}
	return &index.Snapshot{ID: "test", Index: ix, Chunks: chunks}
}

func TestCosineSearcher_Search(t *testing.T) {
	s := newSnapshot(t,
		[]float32{1, 0},  // 0
		[]float32{0, 1},  // 1
		[]float32{5, 0},  // 2: same direction as 0
		[]float32{-1, 0}, // 3
		[]float32{1, 1},  // 4
	)
	searcher, err := NewCosineSearcher(context.Background(), s)
	require.NoError(t, err)
	defer searcher.Close()

	assert.Equal(t, 5, searcher.Len())

	hits, err := searcher.Search([]float32{2, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, 4, hits[2].Position)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	assert.InDelta(t, 1-0.7071068, hits[2].Distance, 1e-5)

	all, err := searcher.Search([]float32{2, 0}, 10)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 3, all[4].Position)
}

func TestCosineSearcher_Errors(t *testing.T) {
	searcher, err := NewCosineSearcher(context.Background(), newSnapshot(t, []float32{1, 0, 0}))
	require.NoError(t, err)

	_, err = searcher.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	hits, err := searcher.Search([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCosineSearcher_ZeroVectors(t *testing.T) {
	_, err := NewCosineSearcher(context.Background(), newSnapshot(t, []float32{1, 0}, []float32{0, 0}))
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	searcher, err := NewCosineSearcher(context.Background(), newSnapshot(t, []float32{1, 0}, []float32{0, 1}))
	require.NoError(t, err)
	defer searcher.Close()

	hits, err := searcher.Search([]float32{0, 0}, 1)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
	assert.Nil(t, hits)
}

func TestHasDirection(t *testing.T) {
	assert.True(t, hasDirection([]float32{0, -2}))
	assert.False(t, hasDirection([]float32{0, 0}))
	assert.False(t, hasDirection([]float32{float32(math.NaN()), 1}))
	assert.False(t, hasDirection([]float32{float32(math.Inf(1)), 1}))
	assert.False(t, hasDirection(nil))
}

func TestCosineSearcher_DoesNotMutateSnapshot(t *testing.T) {
	s := newSnapshot(t, []float32{3, 4})
	_, err := NewCosineSearcher(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []float32{3, 4}, s.Index.Vector(0))
}
