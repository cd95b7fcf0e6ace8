package index

import (
	"context"
	"encoding/gob"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	ferrors "github.com/findex-dev/findex/internal/errors"
	"github.com/findex-dev/findex/internal/store"
)

const (
	vectorsFileName = "vectors.hnsw"
	mappingFileName = "mapping.gob"
	textDirName     = "text.bleve"
	lockFileName    = ".findex.lock"

	// candidatePoolFactor oversizes backend searches so tombstone
	// filtering and fusion still fill topK.
	candidatePoolFactor = 3
)

// entry is one mapping-table row. The ordinal of a document is its
// position in the mapping slice; the table is append-only and dense.
type entry struct {
	// DocID is the text-index key (doc id, or doc id + chunk index).
	DocID string
	// Parent is the owning document id for chunk entries, equal to
	// DocID for unchunked documents.
	Parent string
	// Metadata is arbitrary caller-supplied context.
	Metadata map[string]string
	// Tombstoned entries are filtered from every search path. The
	// vector graph is never compacted in place.
	Tombstoned bool
}

// Config configures a Manager.
type Config struct {
	// Dir is the index directory. Empty means fully in-memory.
	Dir string
	// Dimensions is the vector dimension.
	Dimensions int
	// VectorWeight and TextWeight are the default fusion weights.
	VectorWeight float64
	TextWeight   float64
}

// Manager owns the vector store, the text index, and the
// ordinal-to-document mapping table, and provides hybrid search over
// them. A single writer mutex excludes concurrent mutation and
// persistence; searches take the read side.
type Manager struct {
	mu      sync.RWMutex
	vector  store.VectorStore
	text    store.TextIndex
	mapping []entry
	byDocID map[string]uint64
	config  Config
	lock    *flock.Flock
}

// HybridOptions tunes a single SearchHybrid call.
type HybridOptions struct {
	// Weights overrides the manager's default fusion weights.
	Weights *Weights
}

// Stats is a point-in-time snapshot of index state.
type Stats struct {
	Documents  int    `json:"documents"`
	VectorSize int    `json:"vector_size"`
	TextSize   uint64 `json:"text_size"`
	Tombstones int    `json:"tombstones"`
	Dir        string `json:"dir,omitempty"`
}

// NewManager creates a Manager with fresh backend stores.
// With a non-empty Dir the text index lives on disk immediately; vector
// and mapping state persist on Save.
func NewManager(cfg Config) (*Manager, error) {
	if err := validateWeights(cfg.VectorWeight, cfg.TextWeight); err != nil {
		return nil, err
	}

	vector, err := store.NewHNSWStore(store.DefaultVectorConfig(cfg.Dimensions))
	if err != nil {
		return nil, err
	}

	textPath := ""
	if cfg.Dir != "" {
		textPath = filepath.Join(cfg.Dir, textDirName)
	}
	text, err := store.NewBleveTextIndex(textPath)
	if err != nil {
		_ = vector.Close()
		return nil, err
	}

	m := &Manager{
		vector:  vector,
		text:    text,
		byDocID: make(map[string]uint64),
		config:  cfg,
	}
	if cfg.Dir != "" {
		m.lock = flock.New(filepath.Join(cfg.Dir, lockFileName))
	}
	return m, nil
}

// validateWeights checks that each weight is in [0, 1] and the sum does
// not exceed 1. A small epsilon absorbs float accumulation.
func validateWeights(vector, text float64) error {
	const epsilon = 1e-9
	if vector < 0 || vector > 1 || text < 0 || text > 1 || vector+text > 1+epsilon {
		return ferrors.New(ferrors.ErrCodeWeightsInvalid,
			fmt.Sprintf("fusion weights must each be in [0,1] with sum <= 1, got vector=%v text=%v",
				vector, text), nil)
	}
	return nil
}

// AddDocument indexes content and vector under docID and returns the
// assigned ordinal. The dimension check runs before any mutation; a
// rejected vector leaves both backends untouched. A docID containing
// "#" is treated as a chunk key and its prefix becomes the parent id.
func (m *Manager) AddDocument(ctx context.Context, docID, content string, vector []float32, metadata map[string]string) (uint64, error) {
	if docID == "" {
		return 0, ferrors.New(ferrors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}
	if len(vector) != m.vector.Dimensions() {
		return 0, ferrors.DimensionError(m.vector.Dimensions(), len(vector))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ordinal := uint64(len(m.mapping))

	if err := m.text.Index(ctx, []*store.TextDocument{{ID: docID, Content: content}}); err != nil {
		return 0, err
	}

	if err := m.vector.Add(ctx, ordinal, vector); err != nil {
		// Roll the text side back so the stores stay consistent.
		if delErr := m.text.Delete(ctx, []string{docID}); delErr != nil {
			slog.Warn("text_rollback_failed",
				slog.String("doc_id", docID),
				slog.String("error", delErr.Error()))
		}
		return 0, err
	}

	parent := docID
	if i := strings.LastIndex(docID, "#"); i > 0 {
		parent = docID[:i]
	}

	// Re-adding a doc id supersedes the old entry.
	if prev, ok := m.byDocID[docID]; ok {
		m.mapping[prev].Tombstoned = true
	}

	m.mapping = append(m.mapping, entry{
		DocID:    docID,
		Parent:   parent,
		Metadata: metadata,
	})
	m.byDocID[docID] = ordinal

	return ordinal, nil
}

// Tombstone marks every entry belonging to docID, both the document's
// own key and any chunk keys beneath it. Tombstoned text entries are
// also removed from the text index. Returns the number of entries
// marked.
func (m *Manager) Tombstone(ctx context.Context, docID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	count := 0
	for i := range m.mapping {
		e := &m.mapping[i]
		if e.Tombstoned {
			continue
		}
		if e.DocID == docID || e.Parent == docID {
			e.Tombstoned = true
			count++
			removed = append(removed, e.DocID)
			delete(m.byDocID, e.DocID)
		}
	}

	if len(removed) > 0 {
		if err := m.text.Delete(ctx, removed); err != nil {
			return count, err
		}
	}
	return count, nil
}

// SearchVector returns the nearest live documents to vec.
func (m *Manager) SearchVector(ctx context.Context, vec []float32, topK int) ([]*FusedResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := m.vector.Search(ctx, vec, topK*candidatePoolFactor)
	if err != nil {
		return nil, err
	}

	results := make([]*FusedResult, 0, topK)
	for _, r := range raw {
		e, ok := m.liveEntry(r.Ordinal)
		if !ok {
			continue
		}
		results = append(results, &FusedResult{
			Ordinal:     r.Ordinal,
			DocID:       e.DocID,
			Score:       float64(r.Score),
			VectorScore: float64(r.Score),
			Metadata:    e.Metadata,
		})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// SearchText returns live documents matching query by keyword.
func (m *Manager) SearchText(ctx context.Context, query string, topK int) ([]*FusedResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := m.text.Search(ctx, query, topK*candidatePoolFactor)
	if err != nil {
		return nil, err
	}

	results := make([]*FusedResult, 0, topK)
	for _, r := range raw {
		ordinal, ok := m.byDocID[r.DocID]
		if !ok {
			continue
		}
		e, ok := m.liveEntry(ordinal)
		if !ok {
			continue
		}
		results = append(results, &FusedResult{
			Ordinal:      ordinal,
			DocID:        e.DocID,
			Score:        r.Score,
			TextScore:    r.Score,
			MatchedTerms: r.MatchedTerms,
			Metadata:     e.Metadata,
		})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// SearchHybrid runs vector and text search in parallel and fuses the
// results with weighted min-max normalization. One failed side degrades
// to the other's results; both failing is an error. An empty index
// returns an empty slice.
func (m *Manager) SearchHybrid(ctx context.Context, query string, vec []float32, topK int, opts *HybridOptions) ([]*FusedResult, error) {
	weights := Weights{Vector: m.config.VectorWeight, Text: m.config.TextWeight}
	if opts != nil && opts.Weights != nil {
		weights = *opts.Weights
	}
	if err := validateWeights(weights.Vector, weights.Text); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []*FusedResult{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	pool := topK * candidatePoolFactor

	var (
		vecResults  []*store.VectorResult
		textResults []*store.TextResult
		vecErr      error
		textErr     error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(vec) == 0 {
			return nil
		}
		vecResults, vecErr = m.vector.Search(gctx, vec, pool)
		return nil
	})
	g.Go(func() error {
		textResults, textErr = m.text.Search(gctx, query, pool)
		return nil
	})
	if waitErr := g.Wait(); waitErr != nil {
		return nil, waitErr
	}

	if vecErr != nil && textErr != nil {
		return nil, stderrors.Join(vecErr, textErr)
	}
	if vecErr != nil {
		slog.Warn("vector_search_degraded", slog.String("error", vecErr.Error()))
		vecResults = nil
	}
	if textErr != nil {
		slog.Warn("text_search_degraded", slog.String("error", textErr.Error()))
		textResults = nil
	}

	// Drop tombstoned candidates before fusion.
	liveVec := make([]*store.VectorResult, 0, len(vecResults))
	for _, r := range vecResults {
		if _, ok := m.liveEntry(r.Ordinal); ok {
			liveVec = append(liveVec, r)
		}
	}
	liveText := make([]*store.TextResult, 0, len(textResults))
	textOrdinals := make(map[string]uint64, len(textResults))
	for _, r := range textResults {
		ordinal, ok := m.byDocID[r.DocID]
		if !ok {
			continue
		}
		if _, live := m.liveEntry(ordinal); !live {
			continue
		}
		liveText = append(liveText, r)
		textOrdinals[r.DocID] = ordinal
	}

	fused := fuseMinMax(liveVec, liveText, textOrdinals, weights)

	if len(fused) > topK {
		fused = fused[:topK]
	}
	for _, r := range fused {
		if e, ok := m.liveEntry(r.Ordinal); ok {
			r.DocID = e.DocID
			r.Metadata = e.Metadata
		}
	}
	return fused, nil
}

// liveEntry returns the mapping entry for ordinal if it exists and is
// not tombstoned. Callers must hold at least the read lock.
func (m *Manager) liveEntry(ordinal uint64) (*entry, bool) {
	if ordinal >= uint64(len(m.mapping)) {
		return nil, false
	}
	e := &m.mapping[ordinal]
	if e.Tombstoned {
		return nil, false
	}
	return e, true
}

// Save persists vector and mapping state to the index directory under
// an exclusive directory lock. The text index persists itself. A
// memory-only manager cannot be saved.
func (m *Manager) Save(ctx context.Context) error {
	if m.config.Dir == "" {
		return ferrors.New(ferrors.ErrCodeSaveFailed, "cannot save a memory-only index", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.config.Dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}

	locked, err := m.lock.TryLock()
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}
	if !locked {
		return ferrors.New(ferrors.ErrCodeSaveFailed, "index directory is locked by another process", nil).
			WithDetail("dir", m.config.Dir)
	}
	defer func() { _ = m.lock.Unlock() }()

	if err := m.vector.Save(filepath.Join(m.config.Dir, vectorsFileName)); err != nil {
		return err
	}
	return m.saveMapping(filepath.Join(m.config.Dir, mappingFileName))
}

func (m *Manager) saveMapping(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}

	if err := gob.NewEncoder(file).Encode(m.mapping); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}
	return nil
}

// Load restores vector and mapping state from the index directory.
// The current in-memory state is replaced only after both artifacts
// decode cleanly; a missing directory or empty directory leaves the
// manager empty without error.
func (m *Manager) Load(ctx context.Context) error {
	if m.config.Dir == "" {
		return ferrors.New(ferrors.ErrCodeLoadFailed, "cannot load a memory-only index", nil)
	}

	mappingPath := filepath.Join(m.config.Dir, mappingFileName)
	if _, err := os.Stat(mappingPath); os.IsNotExist(err) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	locked, err := m.lock.TryLock()
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeLoadFailed, err)
	}
	if !locked {
		return ferrors.New(ferrors.ErrCodeLoadFailed, "index directory is locked by another process", nil).
			WithDetail("dir", m.config.Dir)
	}
	defer func() { _ = m.lock.Unlock() }()

	file, err := os.Open(mappingPath)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeLoadFailed, err)
	}
	var mapping []entry
	decodeErr := gob.NewDecoder(file).Decode(&mapping)
	_ = file.Close()
	if decodeErr != nil {
		return ferrors.Wrap(ferrors.ErrCodeLoadFailed, decodeErr)
	}

	vector, err := store.NewHNSWStore(store.DefaultVectorConfig(m.config.Dimensions))
	if err != nil {
		return err
	}
	if err := vector.Load(filepath.Join(m.config.Dir, vectorsFileName)); err != nil {
		_ = vector.Close()
		return err
	}

	// Both artifacts decoded; swap state.
	_ = m.vector.Close()
	m.vector = vector
	m.mapping = mapping
	m.byDocID = make(map[string]uint64, len(mapping))
	for i := range mapping {
		if !mapping[i].Tombstoned {
			m.byDocID[mapping[i].DocID] = uint64(i)
		}
	}
	return nil
}

// Stats returns a snapshot of index state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tombstones := 0
	for i := range m.mapping {
		if m.mapping[i].Tombstoned {
			tombstones++
		}
	}
	textCount, _ := m.text.DocCount()

	return Stats{
		Documents:  len(m.byDocID),
		VectorSize: m.vector.Count(),
		TextSize:   textCount,
		Tombstones: tombstones,
		Dir:        m.config.Dir,
	}
}

// Dimensions returns the configured vector dimension.
func (m *Manager) Dimensions() int {
	return m.vector.Dimensions()
}

// Close releases both backend stores.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if err := m.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.text.Close(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
