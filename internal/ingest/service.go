// Package ingest turns documents into indexed chunks. Large documents
// are split, embedded, and indexed chunk by chunk with per-chunk
// failure isolation; small documents are indexed whole.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/findex-dev/findex/internal/chunk"
	"github.com/findex-dev/findex/internal/embed"
	ferrors "github.com/findex-dev/findex/internal/errors"
	"github.com/findex-dev/findex/internal/index"
	"github.com/findex-dev/findex/internal/snowflake"
	"github.com/findex-dev/findex/internal/store"
)

// DefaultWorkers bounds concurrent chunk indexing per document.
const DefaultWorkers = 4

// Document is the ingest input.
type Document struct {
	// ID is the external document key.
	ID string
	// Content is the full document text.
	Content string
	// ContentType hints the chunking decision.
	ContentType chunk.ContentType
	// Metadata is carried onto every index entry of the document.
	Metadata map[string]string
}

// Result reports the outcome of indexing one document.
type Result struct {
	DocID string
	// Chunked reports whether the document was split.
	Chunked bool
	// Chunks holds per-chunk outcomes in document order; a single
	// synthetic chunk for unchunked documents.
	Chunks []*chunk.Chunk
	// RecordIDs are the snowflake ids assigned per chunk, aligned
	// with Chunks.
	RecordIDs []uint64
	// Completed and Failed count terminal chunk states.
	Completed int
	Failed    int
}

// Stats aggregates ingest activity across documents.
type Stats struct {
	TotalDocumentsProcessed int     `json:"total_documents_processed"`
	ChunkedDocuments        int     `json:"chunked_documents"`
	TotalChunksCreated      int     `json:"total_chunks_created"`
	AvgChunksPerDocument    float64 `json:"avg_chunks_per_document"`
}

// Service orchestrates splitting, embedding, and indexing.
type Service struct {
	manager  *index.Manager
	splitter *chunk.Splitter
	idgen    *snowflake.Generator
	embedder embed.Embedder
	metadata store.MetadataStore
	workers  int
	now      func() time.Time

	statsMu sync.Mutex
	stats   Stats
}

// Options configures optional Service behavior.
type Options struct {
	// Metadata, when set, persists chunk records after each document.
	Metadata store.MetadataStore
	// Workers bounds concurrent chunk indexing; <= 0 means DefaultWorkers.
	Workers int
}

// NewService creates an ingest service. Manager, splitter, id generator
// and embedder are required.
func NewService(manager *index.Manager, splitter *chunk.Splitter, idgen *snowflake.Generator, embedder embed.Embedder, opts Options) (*Service, error) {
	if manager == nil || splitter == nil || idgen == nil || embedder == nil {
		return nil, ferrors.New(ferrors.ErrCodeInvalidInput,
			"ingest service requires manager, splitter, id generator, and embedder", nil)
	}
	if embedder.Dimensions() != manager.Dimensions() {
		return nil, ferrors.DimensionError(manager.Dimensions(), embedder.Dimensions())
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	svc := &Service{
		manager:  manager,
		splitter: splitter,
		idgen:    idgen,
		embedder: embedder,
		metadata: opts.Metadata,
		workers:  workers,
		now:      time.Now,
	}

	// Resume aggregate counters across process restarts.
	if svc.metadata != nil {
		persisted, err := svc.metadata.GetIngestStats(context.Background())
		if err != nil {
			slog.Warn("ingest_stats_load_failed", slog.String("error", err.Error()))
		} else {
			svc.stats = statsFromPersisted(persisted)
		}
	}
	return svc, nil
}

func statsFromPersisted(p store.IngestStats) Stats {
	s := Stats{
		TotalDocumentsProcessed: p.TotalDocumentsProcessed,
		ChunkedDocuments:        p.ChunkedDocuments,
		TotalChunksCreated:      p.TotalChunksCreated,
	}
	if s.ChunkedDocuments > 0 {
		s.AvgChunksPerDocument = float64(s.TotalChunksCreated) / float64(s.ChunkedDocuments)
	}
	return s
}

// ChunkKey builds the index key for one chunk of a document.
func ChunkKey(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", docID, chunkIndex)
}

// IndexDocument indexes one document, splitting it first when it
// exceeds the chunking threshold. Chunk failures are isolated: one
// failed chunk does not stop its siblings, and the document result
// reports both counts. The returned error is non-nil only when the
// document produced no completed chunks at all.
func (s *Service) IndexDocument(ctx context.Context, doc *Document) (*Result, error) {
	if doc == nil || doc.ID == "" {
		return nil, ferrors.New(ferrors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}

	var result *Result
	if s.splitter.ShouldChunk(doc.Content, doc.ContentType) {
		result = s.indexChunked(ctx, doc)
	} else {
		result = s.indexWhole(ctx, doc)
	}

	s.recordStats(result)

	if s.metadata != nil {
		if err := s.persistRecords(ctx, result); err != nil {
			slog.Warn("chunk_records_persist_failed",
				slog.String("doc_id", doc.ID),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("document_indexed",
		slog.String("doc_id", doc.ID),
		slog.Bool("chunked", result.Chunked),
		slog.Int("completed", result.Completed),
		slog.Int("failed", result.Failed))

	if result.Completed == 0 && result.Failed > 0 {
		return result, ferrors.New(ferrors.ErrCodeInternal,
			fmt.Sprintf("all %d chunks of %s failed", result.Failed, doc.ID), nil).
			WithDetail("doc_id", doc.ID)
	}
	return result, nil
}

// indexWhole indexes the document as a single synthetic chunk.
func (s *Service) indexWhole(ctx context.Context, doc *Document) *Result {
	length := len([]rune(doc.Content))
	c := &chunk.Chunk{
		Index:         0,
		Content:       doc.Content,
		ContentLength: length,
		StartPos:      0,
		EndPos:        length,
		Status:        chunk.StatusPending,
	}

	result := &Result{
		DocID:     doc.ID,
		Chunks:    []*chunk.Chunk{c},
		RecordIDs: []uint64{s.idgen.Next()},
	}

	s.indexChunk(ctx, doc, doc.ID, c)
	s.tally(result)
	return result
}

// indexChunked splits the document and indexes chunks concurrently on
// a bounded worker pool.
func (s *Service) indexChunked(ctx context.Context, doc *Document) *Result {
	chunks := s.splitter.Split(doc.Content)

	result := &Result{
		DocID:     doc.ID,
		Chunked:   true,
		Chunks:    chunks,
		RecordIDs: make([]uint64, len(chunks)),
	}
	for i := range chunks {
		result.RecordIDs[i] = s.idgen.Next()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			s.indexChunk(gctx, doc, ChunkKey(doc.ID, c.Index), c)
			// Chunk failures are recorded on the chunk, never
			// propagated, so siblings always run.
			return nil
		})
	}
	_ = g.Wait()

	s.tally(result)
	return result
}

// indexChunk drives one chunk through its status transitions.
func (s *Service) indexChunk(ctx context.Context, doc *Document, key string, c *chunk.Chunk) {
	if err := c.MarkProcessing(); err != nil {
		_ = c.MarkFailed(err)
		return
	}

	vector, err := s.embedder.Embed(ctx, c.Content)
	if err != nil {
		wrapped := ferrors.Wrap(ferrors.ErrCodeEmbeddingFailed, err)
		slog.Warn("chunk_embedding_failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		_ = c.MarkFailed(wrapped)
		return
	}

	if _, err := s.manager.AddDocument(ctx, key, c.Content, vector, doc.Metadata); err != nil {
		slog.Warn("chunk_index_failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		_ = c.MarkFailed(err)
		return
	}

	_ = c.MarkCompleted(s.now().UTC())
}

func (s *Service) tally(result *Result) {
	for _, c := range result.Chunks {
		switch c.Status {
		case chunk.StatusCompleted:
			result.Completed++
		case chunk.StatusFailed:
			result.Failed++
		}
	}
}

func (s *Service) recordStats(result *Result) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.TotalDocumentsProcessed++
	if result.Chunked {
		s.stats.ChunkedDocuments++
		s.stats.TotalChunksCreated += len(result.Chunks)
	}
	if s.stats.ChunkedDocuments > 0 {
		s.stats.AvgChunksPerDocument =
			float64(s.stats.TotalChunksCreated) / float64(s.stats.ChunkedDocuments)
	}
}

// persistRecords writes the document's chunk outcomes and the updated
// aggregate counters to the metadata store.
func (s *Service) persistRecords(ctx context.Context, result *Result) error {
	snapshot := s.Stats()
	if err := s.metadata.SaveIngestStats(ctx, store.IngestStats{
		TotalDocumentsProcessed: snapshot.TotalDocumentsProcessed,
		ChunkedDocuments:        snapshot.ChunkedDocuments,
		TotalChunksCreated:      snapshot.TotalChunksCreated,
	}); err != nil {
		return err
	}
	return s.persistChunkRecords(ctx, result)
}

func (s *Service) persistChunkRecords(ctx context.Context, result *Result) error {
	recs := make([]*store.ChunkRecord, len(result.Chunks))
	for i, c := range result.Chunks {
		recs[i] = &store.ChunkRecord{
			ID:            result.RecordIDs[i],
			DocID:         result.DocID,
			Index:         c.Index,
			StartPos:      c.StartPos,
			EndPos:        c.EndPos,
			ContentLength: c.ContentLength,
			Status:        c.Status.String(),
			Error:         c.Error,
			IndexedAt:     c.IndexedAt,
		}
	}
	return s.metadata.SaveChunkRecords(ctx, recs)
}

// RemoveDocument tombstones every index entry of a document and drops
// its chunk records.
func (s *Service) RemoveDocument(ctx context.Context, docID string) (int, error) {
	count, err := s.manager.Tombstone(ctx, docID)
	if err != nil {
		return count, err
	}
	if s.metadata != nil {
		if err := s.metadata.DeleteChunkRecords(ctx, docID); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Stats returns a snapshot of aggregate ingest statistics.
func (s *Service) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}
