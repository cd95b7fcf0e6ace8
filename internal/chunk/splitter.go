package chunk

import (
	"fmt"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

// Splitter slices document content into fixed-size overlapping windows.
// Splitting is deterministic: identical content and parameters always
// yield identical chunk boundaries, which keeps re-indexing idempotent.
type Splitter struct {
	chunkSize int
	overlap   int
	threshold int
}

// NewSplitter creates a Splitter.
// chunkSize and overlap must satisfy 0 <= overlap < chunkSize; threshold
// is the content length below which ShouldChunk returns false. Zero or
// negative values select the package defaults.
func NewSplitter(chunkSize, overlap, threshold int) (*Splitter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, ferrors.New(ferrors.ErrCodeChunkParams,
			fmt.Sprintf("overlap must satisfy 0 <= overlap < chunk_size, got overlap=%d chunk_size=%d",
				overlap, chunkSize), nil)
	}

	return &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
		threshold: threshold,
	}, nil
}

// ChunkSize returns the configured window size in characters.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap in characters.
func (s *Splitter) Overlap() int { return s.overlap }

// ShouldChunk reports whether content is long enough to warrant chunking.
// Short documents are indexed whole; length is measured in characters.
func (s *Splitter) ShouldChunk(content string, contentType ContentType) bool {
	return len([]rune(content)) > s.threshold
}

// Split walks the content producing windows of chunkSize characters
// advancing by chunkSize-overlap each step; the final chunk is truncated
// to the remaining tail, never padded. Chunk indices are assigned 0..N-1
// in emission order. Offsets are character positions, EndPos exclusive.
func (s *Splitter) Split(content string) []*Chunk {
	runes := []rune(content)
	if len(runes) == 0 {
		return []*Chunk{}
	}

	step := s.chunkSize - s.overlap

	var chunks []*Chunk
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		piece := string(runes[start:end])
		chunks = append(chunks, &Chunk{
			Index:         len(chunks),
			Content:       piece,
			ContentLength: end - start,
			StartPos:      start,
			EndPos:        end,
			Status:        StatusPending,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}
