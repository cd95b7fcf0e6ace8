package store

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

func newTestVectorStore(t *testing.T, dim int) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorConfig(dim))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func TestNewHNSWStore_InvalidDimensions(t *testing.T) {
	_, err := NewHNSWStore(VectorConfig{Dimensions: 0})
	require.Error(t, err)
	assert.True(t, ferrors.IsConfig(err))

	_, err = NewHNSWStore(VectorConfig{Dimensions: -5})
	require.Error(t, err)
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestVectorStore(t, 4)

	vectors := map[uint64][]float32{
		0: {1, 0, 0, 0},
		1: {0, 1, 0, 0},
		2: {0.9, 0.1, 0, 0},
	}
	for ord, vec := range vectors {
		require.NoError(t, s.Add(ctx, ord, vec))
	}
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Exact match first, then the nearby vector.
	assert.Equal(t, uint64(0), results[0].Ordinal)
	assert.Equal(t, uint64(2), results[1].Ordinal)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestVectorStore(t, 4)

	err := s.Add(ctx, 0, []float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, ferrors.IsDimensionMismatch(err))
	assert.Equal(t, 0, s.Count(), "failed add must not change the store")

	_, err = s.Search(ctx, []float32{1, 2}, 5)
	require.Error(t, err)
	assert.True(t, ferrors.IsDimensionMismatch(err))
}

func TestHNSWStore_EmptySearch(t *testing.T) {
	ctx := context.Background()
	s := newTestVectorStore(t, 4)

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_NormalizationInvariance(t *testing.T) {
	// Cosine similarity ignores magnitude, so a scaled copy of the
	// query must score the same as the original.
	ctx := context.Background()
	s := newTestVectorStore(t, 3)

	require.NoError(t, s.Add(ctx, 0, []float32{2, 0, 0}))
	require.NoError(t, s.Add(ctx, 1, []float32{0, 5, 0}))

	results, err := s.Search(ctx, []float32{0.1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(0), results[0].Ordinal)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	s := newTestVectorStore(t, 8)
	rng := rand.New(rand.NewSource(42))
	originals := make([][]float32, 20)
	for i := range originals {
		originals[i] = randomVector(rng, 8)
		require.NoError(t, s.Add(ctx, uint64(i), originals[i]))
	}
	require.NoError(t, s.Save(path))

	loaded, err := NewHNSWStore(DefaultVectorConfig(8))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, s.Count(), loaded.Count())
	assert.Equal(t, 8, loaded.Dimensions())

	// Nearest neighbor of each original vector is itself.
	for i, vec := range originals {
		results, err := loaded.Search(ctx, vec, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint64(i), results[0].Ordinal)
	}
}

func TestHNSWStore_LoadMissingFile(t *testing.T) {
	s := newTestVectorStore(t, 4)

	err := s.Load(filepath.Join(t.TempDir(), "absent.hnsw"))
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeLoadFailed, ferrors.GetCode(err))
}

func TestHNSWStore_ClosedOperations(t *testing.T) {
	ctx := context.Background()
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Add(ctx, 0, []float32{1, 0, 0, 0}))
	_, err = s.Search(ctx, []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Count())
	assert.NoError(t, s.Close(), "double close is a no-op")
}

func TestDistanceToScore(t *testing.T) {
	tests := []struct {
		name     string
		distance float32
		metric   string
		want     float32
	}{
		{"cosine identical", 0, "cos", 1.0},
		{"cosine orthogonal", 1, "cos", 0.5},
		{"cosine opposite", 2, "cos", 0.0},
		{"l2 identical", 0, "l2", 1.0},
		{"l2 distant", 1, "l2", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.want), float64(distanceToScore(tt.distance, tt.metric)), 1e-6)
		})
	}
}

func TestNormalizeInPlace_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	normalizeInPlace(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}
