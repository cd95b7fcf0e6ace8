// Package store provides the leaf index backends: vector similarity
// search (coder/hnsw), inverted full-text search (bleve), and chunk
// metadata persistence (SQLite).
package store

import (
	"context"
	"time"
)

// VectorResult is a single nearest-neighbor search result.
type VectorResult struct {
	// Ordinal is the append-only position of the vector in the index.
	Ordinal uint64
	// Distance is the raw metric distance (lower is more similar).
	Distance float32
	// Score is the normalized similarity in [0, 1] (higher is better).
	Score float32
}

// VectorStore provides approximate nearest-neighbor search over
// ordinal-keyed vectors. Ordinals are assigned by the caller, are dense
// and append-only; the store never compacts.
type VectorStore interface {
	// Add inserts a vector under the given ordinal.
	Add(ctx context.Context, ordinal uint64, vector []float32) error

	// Search finds the k nearest neighbors to query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Count returns the number of stored vectors.
	Count() int

	// Dimensions returns the fixed vector dimension.
	Dimensions() int

	// Persistence.
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorConfig configures the vector store.
type VectorConfig struct {
	// Dimensions is the vector dimension (e.g. 768).
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for the given dimension.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   32,
	}
}

// TextDocument is a document to be indexed for full-text search.
type TextDocument struct {
	// ID is the text-index document key (doc id or doc id + chunk index).
	ID string
	// Content is the text content.
	Content string
}

// TextResult is a single full-text search result.
type TextResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// TextIndex provides keyword search over an inverted index with
// BM25-style relevance scoring.
type TextIndex interface {
	// Index adds documents to the index, replacing existing IDs.
	Index(ctx context.Context, docs []*TextDocument) error

	// Search returns documents matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]*TextResult, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, ids []string) error

	// DocCount returns the number of indexed documents.
	DocCount() (uint64, error)

	Close() error
}

// ChunkRecord is the persisted form of a chunk's indexing outcome.
type ChunkRecord struct {
	// ID is the snowflake record identifier.
	ID uint64
	// DocID is the owning document's external id.
	DocID string
	// Index is the chunk's 0-based sequence within the document.
	Index int
	// StartPos and EndPos are character offsets, EndPos exclusive.
	StartPos int
	EndPos   int
	// ContentLength is the chunk length in characters.
	ContentLength int
	// Status is the terminal indexing state ("completed" or "failed",
	// or a non-terminal state if persisted mid-flight).
	Status string
	// Error retains the failure message for failed chunks.
	Error string
	// IndexedAt is set for completed chunks.
	IndexedAt time.Time
}

// IngestStats is the persisted form of aggregate ingest counters.
type IngestStats struct {
	TotalDocumentsProcessed int
	ChunkedDocuments        int
	TotalChunksCreated      int
}

// MetadataStore persists chunk records and ingest statistics.
type MetadataStore interface {
	// SaveChunkRecords upserts records in one transaction.
	SaveChunkRecords(ctx context.Context, recs []*ChunkRecord) error

	// GetChunkRecords returns records for a document ordered by chunk index.
	GetChunkRecords(ctx context.Context, docID string) ([]*ChunkRecord, error)

	// DeleteChunkRecords removes all records for a document.
	DeleteChunkRecords(ctx context.Context, docID string) error

	// CountChunkRecords returns the total number of records.
	CountChunkRecords(ctx context.Context) (int, error)

	// SaveIngestStats replaces the persisted aggregate counters.
	SaveIngestStats(ctx context.Context, stats IngestStats) error

	// GetIngestStats returns the persisted aggregate counters,
	// zero-valued when none were saved yet.
	GetIngestStats(ctx context.Context) (IngestStats, error)

	Close() error
}
