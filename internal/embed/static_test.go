package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestStatic_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewStatic(128)

	a, err := e.Embed(ctx, "hybrid search engine")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "hybrid search engine")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStatic_EmptyInput(t *testing.T) {
	ctx := context.Background()
	e := NewStatic(64)

	v, err := e.Embed(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, v, 64)
	for _, val := range v {
		assert.Zero(t, val)
	}
}

func TestStatic_UnitLength(t *testing.T) {
	ctx := context.Background()
	e := NewStatic(128)

	v, err := e.Embed(ctx, "some meaningful content here")
	require.NoError(t, err)

	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-5)
}

func TestStatic_SimilarTextsCloser(t *testing.T) {
	ctx := context.Background()
	e := NewStatic(256)

	base, err := e.Embed(ctx, "vector similarity search over documents")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "similarity search over document vectors")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "banana bread recipe with walnuts")
	require.NoError(t, err)

	assert.Greater(t, cosine(base, near), cosine(base, far))
}

func TestStatic_CJKTokens(t *testing.T) {
	ctx := context.Background()
	e := NewStatic(256)

	a, err := e.Embed(ctx, "机器学习算法")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "深度学习网络")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "completely unrelated english text")
	require.NoError(t, err)

	// The two CJK texts share the "学习" characters.
	assert.Greater(t, cosine(a, b), cosine(a, c))
}

func TestStatic_Dimensions(t *testing.T) {
	e := NewStatic(768)
	assert.Equal(t, 768, e.Dimensions())
	assert.Equal(t, "static", e.Name())
}
