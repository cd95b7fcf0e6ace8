package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

// HNSWStore implements VectorStore using the coder/hnsw pure Go HNSW
// graph. Vectors are keyed directly by their ordinal; the graph is
// append-only and never compacted (tombstone filtering is the caller's
// responsibility via the document mapping).
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorConfig
	count  int
	closed bool
}

// hnswSidecar stores config and count alongside the exported graph.
type hnswSidecar struct {
	Config VectorConfig
	Count  int
}

// NewHNSWStore creates a new HNSW-based vector store.
func NewHNSWStore(cfg VectorConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, ferrors.ConfigError(
			fmt.Sprintf("vector dimensions must be positive, got %d", cfg.Dimensions), nil)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 32
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		config: cfg,
	}, nil
}

// Add inserts a vector under the given ordinal.
// Returns a dimension mismatch error without touching the graph when the
// vector has the wrong length.
func (s *HNSWStore) Add(ctx context.Context, ordinal uint64, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.BackendError("vector store is closed", nil)
	}

	if len(vector) != s.config.Dimensions {
		return ferrors.DimensionError(s.config.Dimensions, len(vector))
	}

	// Normalize a copy for cosine similarity; the caller keeps its slice.
	vec := make([]float32, len(vector))
	copy(vec, vector)
	if s.config.Metric != "l2" {
		normalizeInPlace(vec)
	}

	s.graph.Add(hnsw.MakeNode(ordinal, vec))
	s.count++
	return nil
}

// Search finds the k nearest neighbors to query.
// An empty store returns an empty result list, never an error.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ferrors.BackendError("vector store is closed", nil)
	}

	if len(query) != s.config.Dimensions {
		return nil, ferrors.DimensionError(s.config.Dimensions, len(query))
	}

	if s.graph.Len() == 0 || k <= 0 {
		return []*VectorResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric != "l2" {
		normalizeInPlace(q)
	}

	nodes := s.graph.Search(q, k)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		distance := s.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			Ordinal:  node.Key,
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
	}

	return results, nil
}

// Count returns the number of stored vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return s.count
}

// Dimensions returns the fixed vector dimension.
func (s *HNSWStore) Dimensions() int {
	return s.config.Dimensions
}

// Save persists the graph to disk using a temp file + rename, with a gob
// sidecar at path+".meta" holding config and count.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ferrors.BackendError("vector store is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}

	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}

	return s.saveSidecar(path + ".meta")
}

func (s *HNSWStore) saveSidecar(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeSaveFailed, err)
	}

	meta := hnswSidecar{Config: s.config, Count: s.count}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
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

// Load restores the graph from disk. The sidecar is read first so the
// graph is rebuilt with the persisted config.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.BackendError("vector store is closed", nil)
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeLoadFailed, err)
	}
	var meta hnswSidecar
	decodeErr := gob.NewDecoder(metaFile).Decode(&meta)
	_ = metaFile.Close()
	if decodeErr != nil {
		return ferrors.Wrap(ferrors.ErrCodeLoadFailed, decodeErr)
	}

	file, err := os.Open(path)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeLoadFailed, err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeLoadFailed, err)
	}

	s.config = meta.Config
	s.count = meta.Count
	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

var _ VectorStore = (*HNSWStore)(nil)

// normalizeInPlace normalizes a vector to unit length in place.
// The zero vector is left untouched.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore converts a distance to a similarity score in [0, 1].
// Cosine distance ranges 0-2; L2 ranges 0-inf.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
