package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTextIndex(t *testing.T) *BleveTextIndex {
	t.Helper()
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveTextIndex_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestTextIndex(t)

	docs := []*TextDocument{
		{ID: "1", Content: "the quick brown fox jumps over the lazy dog"},
		{ID: "2", Content: "machine learning models require training data"},
		{ID: "3", Content: "the fox is quick and brown"},
	}
	require.NoError(t, idx.Index(ctx, docs))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	results, err := idx.Search(ctx, "quick fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].DocID, results[1].DocID}
	assert.ElementsMatch(t, []string{"1", "3"}, ids)
	assert.NotEmpty(t, results[0].MatchedTerms)
}

func TestBleveTextIndex_CJKBigramMatching(t *testing.T) {
	ctx := context.Background()
	idx := newTestTextIndex(t)

	docs := []*TextDocument{
		{ID: "1", Content: "machine learning is a field of artificial intelligence"},
		{ID: "2", Content: "机器学习是人工智能的一个分支"},
		{ID: "3", Content: "深度学习需要大量训练数据"},
		{ID: "4", Content: "今天天气很好"},
	}
	require.NoError(t, idx.Index(ctx, docs))

	results, err := idx.Search(ctx, "学习", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].DocID, results[1].DocID}
	assert.ElementsMatch(t, []string{"2", "3"}, ids)
}

func TestBleveTextIndex_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	idx := newTestTextIndex(t)

	require.NoError(t, idx.Index(ctx, []*TextDocument{
		{ID: "1", Content: "Hybrid Search Engine"},
	}))

	results, err := idx.Search(ctx, "hybrid search", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].DocID)
}

func TestBleveTextIndex_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	idx := newTestTextIndex(t)

	require.NoError(t, idx.Index(ctx, []*TextDocument{{ID: "1", Content: "hello"}}))

	for _, query := range []string{"", "   ", "\t\n"} {
		results, err := idx.Search(ctx, query, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestBleveTextIndex_Reindex(t *testing.T) {
	ctx := context.Background()
	idx := newTestTextIndex(t)

	require.NoError(t, idx.Index(ctx, []*TextDocument{{ID: "1", Content: "old content about dogs"}}))
	require.NoError(t, idx.Index(ctx, []*TextDocument{{ID: "1", Content: "new content about cats"}}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	results, err := idx.Search(ctx, "dogs", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "cats", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestBleveTextIndex_Delete(t *testing.T) {
	ctx := context.Background()
	idx := newTestTextIndex(t)

	require.NoError(t, idx.Index(ctx, []*TextDocument{
		{ID: "1", Content: "alpha"},
		{ID: "2", Content: "beta"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"1"}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	require.NoError(t, idx.Delete(ctx, nil), "empty delete is a no-op")
}

func TestBleveTextIndex_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "text.bleve")

	idx, err := NewBleveTextIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, []*TextDocument{{ID: "1", Content: "persistent data"}}))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveTextIndex(path)
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(ctx, "persistent", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].DocID)
}

func TestBleveTextIndex_CorruptionRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.bleve")

	// A directory without index_meta.json looks like a corrupt index.
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "junk"), []byte("x"), 0o644))

	idx, err := NewBleveTextIndex(path)
	require.NoError(t, err, "corrupt index is cleared and recreated")
	defer idx.Close()

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestBleveTextIndex_Closed(t *testing.T) {
	ctx := context.Background()
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.Error(t, idx.Index(ctx, []*TextDocument{{ID: "1", Content: "x"}}))
	_, err = idx.Search(ctx, "x", 1)
	assert.Error(t, err)
	assert.NoError(t, idx.Close())
}
