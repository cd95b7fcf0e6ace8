// Package chunk turns long documents into overlapping retrievable pieces
// and scores their relevance against query-term positions.
package chunk

import (
	"fmt"
	"time"
)

// Chunking defaults. Sizes are in characters (runes), not bytes, so CJK
// content chunks the same as ASCII.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
	DefaultThreshold = 500
)

// ContentType describes the kind of content being indexed.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeCode     ContentType = "code"
)

// Status is the indexing state of a chunk.
//
// Transitions: pending → processing → {completed | failed}.
// Completed and failed are terminal; re-indexing creates a new chunk
// record rather than mutating a terminal one.
type Status int

const (
	StatusPending Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

// String returns the snake_case name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the transition s → next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Chunk is one piece of a split document. A chunk belongs to exactly one
// document and never outlives it.
type Chunk struct {
	// Index is the 0-based sequence within the document.
	Index int

	// Content is the chunk's substring of the document.
	Content string

	// ContentLength is the content length in characters.
	ContentLength int

	// StartPos and EndPos are character offsets into the parent
	// document; EndPos is exclusive.
	StartPos int
	EndPos   int

	// Status is the indexing state (see Status).
	Status Status

	// IndexedAt is set only on the transition to StatusCompleted.
	IndexedAt time.Time

	// Error retains the failure message when Status is StatusFailed.
	Error string
}

// ContainsPosition reports whether character offset p falls inside the
// chunk: StartPos <= p < EndPos.
func (c *Chunk) ContainsPosition(p int) bool {
	return p >= c.StartPos && p < c.EndPos
}

// transition moves the chunk to next, enforcing the state machine.
func (c *Chunk) transition(next Status) error {
	if !c.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal chunk status transition %s -> %s", c.Status, next)
	}
	c.Status = next
	return nil
}

// MarkProcessing moves the chunk from pending to processing.
func (c *Chunk) MarkProcessing() error {
	return c.transition(StatusProcessing)
}

// MarkCompleted moves the chunk to completed and stamps IndexedAt.
func (c *Chunk) MarkCompleted(now time.Time) error {
	if err := c.transition(StatusCompleted); err != nil {
		return err
	}
	c.IndexedAt = now
	return nil
}

// MarkFailed moves the chunk to failed, retaining the error message.
func (c *Chunk) MarkFailed(cause error) error {
	if err := c.transition(StatusFailed); err != nil {
		return err
	}
	if cause != nil {
		c.Error = cause.Error()
	}
	return nil
}
