package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	dim   int
	fail  bool
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("backend down")
	}
	v := make([]float32, e.dim)
	for i := range v {
		v[i] = float32(len(text))
	}
	return v, nil
}

func (e *countingEmbedder) Dimensions() int { return e.dim }
func (e *countingEmbedder) Name() string    { return "counting" }

func TestCached_HitSkipsInner(t *testing.T) {
	inner := &countingEmbedder{dim: 4}
	c := NewCached(inner, 10)

	ctx := context.Background()
	first, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, c.Len())
}

func TestCached_DistinctTextsMiss(t *testing.T) {
	inner := &countingEmbedder{dim: 4}
	c := NewCached(inner, 10)

	ctx := context.Background()
	_, err := c.Embed(ctx, "one")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "two")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCached_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{dim: 4, fail: true}
	c := NewCached(inner, 10)

	ctx := context.Background()
	_, err := c.Embed(ctx, "boom")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	inner.fail = false
	_, err = c.Embed(ctx, "boom")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_Eviction(t *testing.T) {
	inner := &countingEmbedder{dim: 2}
	c := NewCached(inner, 2)

	ctx := context.Background()
	for _, s := range []string{"a", "b", "c"} {
		_, err := c.Embed(ctx, s)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	// "a" was evicted, recomputes.
	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestZeroEmbedder(t *testing.T) {
	e := NewZeroEmbedder(8)
	v, err := e.Embed(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	for _, x := range v {
		assert.Zero(t, x)
	}
	assert.Equal(t, 8, e.Dimensions())
}

func TestFuncAdapter(t *testing.T) {
	f := Func{
		Fn: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 2, 3}, nil
		},
		Dim:  3,
		Desc: "pipeline",
	}

	v, err := f.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
	assert.Equal(t, 3, f.Dimensions())
	assert.Equal(t, "pipeline", f.Name())
}
