package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

// SQLiteMetadataStore persists chunk records in a SQLite database using
// the pure Go modernc.org/sqlite driver.
type SQLiteMetadataStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteMetadataStore opens or creates the metadata database at path.
// An empty path creates an in-memory database.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, ferrors.BackendError("failed to create metadata directory", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ferrors.BackendError("failed to open metadata database", err)
	}

	// Single writer avoids lock contention; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite, DSN
	// parameters are not honored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ferrors.BackendError("failed to set pragma", err)
		}
	}

	s := &SQLiteMetadataStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, ferrors.BackendError("failed to initialize metadata schema", err)
	}
	return s, nil
}

func (s *SQLiteMetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS chunk_records (
		id             INTEGER PRIMARY KEY,
		doc_id         TEXT NOT NULL,
		chunk_index    INTEGER NOT NULL,
		start_pos      INTEGER NOT NULL,
		end_pos        INTEGER NOT NULL,
		content_length INTEGER NOT NULL,
		status         TEXT NOT NULL,
		error          TEXT NOT NULL DEFAULT '',
		indexed_at     INTEGER NOT NULL DEFAULT 0,
		UNIQUE (doc_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunk_records_doc
		ON chunk_records (doc_id);

	CREATE TABLE IF NOT EXISTS ingest_stats (
		id              INTEGER PRIMARY KEY CHECK (id = 1),
		total_documents INTEGER NOT NULL,
		chunked_docs    INTEGER NOT NULL,
		total_chunks    INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveChunkRecords upserts the given records in a single transaction.
func (s *SQLiteMetadataStore) SaveChunkRecords(ctx context.Context, recs []*ChunkRecord) error {
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.BackendError("metadata store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ferrors.BackendError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_records
			(id, doc_id, chunk_index, start_pos, end_pos, content_length, status, error, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (doc_id, chunk_index) DO UPDATE SET
			id = excluded.id,
			start_pos = excluded.start_pos,
			end_pos = excluded.end_pos,
			content_length = excluded.content_length,
			status = excluded.status,
			error = excluded.error,
			indexed_at = excluded.indexed_at`)
	if err != nil {
		return ferrors.BackendError("failed to prepare upsert", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		var indexedAt int64
		if !rec.IndexedAt.IsZero() {
			indexedAt = rec.IndexedAt.UnixMilli()
		}
		_, err := stmt.ExecContext(ctx,
			int64(rec.ID), rec.DocID, rec.Index,
			rec.StartPos, rec.EndPos, rec.ContentLength,
			rec.Status, rec.Error, indexedAt)
		if err != nil {
			return ferrors.BackendError("failed to upsert chunk record", err).
				WithDetail("doc_id", rec.DocID)
		}
	}

	if err := tx.Commit(); err != nil {
		return ferrors.BackendError("failed to commit chunk records", err)
	}
	return nil
}

// GetChunkRecords returns records for a document ordered by chunk index.
func (s *SQLiteMetadataStore) GetChunkRecords(ctx context.Context, docID string) ([]*ChunkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ferrors.BackendError("metadata store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, chunk_index, start_pos, end_pos, content_length, status, error, indexed_at
		FROM chunk_records
		WHERE doc_id = ?
		ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, ferrors.BackendError("failed to query chunk records", err)
	}
	defer rows.Close()

	var recs []*ChunkRecord
	for rows.Next() {
		var (
			rec       ChunkRecord
			id        int64
			indexedAt int64
		)
		if err := rows.Scan(&id, &rec.DocID, &rec.Index,
			&rec.StartPos, &rec.EndPos, &rec.ContentLength,
			&rec.Status, &rec.Error, &indexedAt); err != nil {
			return nil, ferrors.BackendError("failed to scan chunk record", err)
		}
		rec.ID = uint64(id)
		if indexedAt > 0 {
			rec.IndexedAt = time.UnixMilli(indexedAt).UTC()
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.BackendError("failed to iterate chunk records", err)
	}
	return recs, nil
}

// DeleteChunkRecords removes all records for a document.
func (s *SQLiteMetadataStore) DeleteChunkRecords(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.BackendError("metadata store is closed", nil)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM chunk_records WHERE doc_id = ?", docID); err != nil {
		return ferrors.BackendError("failed to delete chunk records", err).
			WithDetail("doc_id", docID)
	}
	return nil
}

// CountChunkRecords returns the total number of records.
func (s *SQLiteMetadataStore) CountChunkRecords(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ferrors.BackendError("metadata store is closed", nil)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunk_records").Scan(&count); err != nil {
		return 0, ferrors.BackendError("failed to count chunk records", err)
	}
	return count, nil
}

// SaveIngestStats replaces the persisted aggregate counters.
func (s *SQLiteMetadataStore) SaveIngestStats(ctx context.Context, stats IngestStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.BackendError("metadata store is closed", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_stats (id, total_documents, chunked_docs, total_chunks)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			total_documents = excluded.total_documents,
			chunked_docs = excluded.chunked_docs,
			total_chunks = excluded.total_chunks`,
		stats.TotalDocumentsProcessed, stats.ChunkedDocuments, stats.TotalChunksCreated)
	if err != nil {
		return ferrors.BackendError("failed to save ingest stats", err)
	}
	return nil
}

// GetIngestStats returns the persisted aggregate counters.
func (s *SQLiteMetadataStore) GetIngestStats(ctx context.Context) (IngestStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return IngestStats{}, ferrors.BackendError("metadata store is closed", nil)
	}

	var stats IngestStats
	err := s.db.QueryRowContext(ctx, `
		SELECT total_documents, chunked_docs, total_chunks
		FROM ingest_stats WHERE id = 1`).
		Scan(&stats.TotalDocumentsProcessed, &stats.ChunkedDocuments, &stats.TotalChunksCreated)
	if err == sql.ErrNoRows {
		return IngestStats{}, nil
	}
	if err != nil {
		return IngestStats{}, ferrors.BackendError("failed to load ingest stats", err)
	}
	return stats, nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)
