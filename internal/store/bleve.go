package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

// TextAnalyzerName is the analyzer used for all indexed content. It
// tokenizes on unicode word boundaries, folds width variants and case,
// and emits bigrams for CJK runs so that queries like "学习" match
// documents containing the same character pair.
const TextAnalyzerName = "findex_text"

// BleveTextIndex wraps bleve v2 for BM25-scored keyword search.
type BleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveTextIndex creates or opens a text index at path.
// An empty path creates an in-memory index.
// A corrupted on-disk index is cleared and recreated; the caller must
// reindex in that case.
func NewBleveTextIndex(path string) (*BleveTextIndex, error) {
	indexMapping, err := createTextMapping()
	if err != nil {
		return nil, ferrors.BackendError("failed to create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, ferrors.BackendError("failed to create index directory", mkErr)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("text_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, ferrors.New(ferrors.ErrCodeCorruptIndex,
					"text index corrupted and cannot be cleared", removeErr).
					WithDetail("path", path)
			}
			slog.Info("text_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, reindex required"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("text_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, ferrors.New(ferrors.ErrCodeCorruptIndex,
					"text index corrupted and cannot be cleared", removeErr).
					WithDetail("path", path)
			}
			slog.Info("text_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, reindex required"))

			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, ferrors.BackendError("failed to create/open text index", err)
	}

	return &BleveTextIndex{index: idx, path: path}, nil
}

// createTextMapping builds the index mapping with the CJK-aware analyzer.
func createTextMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			cjk.WidthName,
			lowercase.Name,
			cjk.BigramName,
		},
	})
	if err != nil {
		return nil, err
	}

	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}

// validateIndexIntegrity checks a bleve index directory before opening.
// Returns nil if the index is absent or looks healthy.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return ferrors.New(ferrors.ErrCodeCorruptIndex, "index_meta.json missing", nil)
	}
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeCorruptIndex, err)
	}
	if info.Size() == 0 {
		return ferrors.New(ferrors.ErrCodeCorruptIndex, "index_meta.json is empty", nil)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeCorruptIndex, err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeCorruptIndex, err)
	}

	return nil
}

// isCorruptionError checks whether an open error indicates corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Index adds documents in one batch, replacing existing IDs.
func (b *BleveTextIndex) Index(ctx context.Context, docs []*TextDocument) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ferrors.BackendError("text index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			return ferrors.BackendError("failed to index document", err).
				WithDetail("doc_id", doc.ID)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return ferrors.BackendError("failed to execute index batch", err)
	}
	return nil
}

// Search returns documents matching query, best first.
// Empty or whitespace queries return an empty result list.
func (b *BleveTextIndex) Search(ctx context.Context, queryStr string, limit int) ([]*TextResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ferrors.BackendError("text index is closed", nil)
	}

	if strings.TrimSpace(queryStr) == "" || limit <= 0 {
		return []*TextResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, ferrors.BackendError("text search failed", err)
	}

	results := make([]*TextResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &TextResult{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// Delete removes documents from the index.
func (b *BleveTextIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ferrors.BackendError("text index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return ferrors.BackendError("failed to delete documents", err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (b *BleveTextIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ferrors.BackendError("text index is closed", nil)
	}
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveTextIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// extractMatchedTerms collects the analyzed terms that matched in content.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

var _ TextIndex = (*BleveTextIndex)(nil)
