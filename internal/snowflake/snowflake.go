// Package snowflake issues monotonically-increasing, globally unique 64-bit
// identifiers used as document and chunk record keys.
//
// Layout, most-significant bit first: 1 reserved sign bit (always 0),
// 41-bit millisecond timestamp since Epoch, 10-bit machine id, 12-bit
// per-millisecond sequence.
package snowflake

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

const (
	// Epoch is the custom epoch (2024-01-01T00:00:00Z) in Unix milliseconds.
	// 41 bits of milliseconds gives roughly 69 years of range from here.
	Epoch int64 = 1704067200000

	timestampBits = 41
	machineBits   = 10
	sequenceBits  = 12

	// MaxMachineID is the largest valid machine id (1023).
	MaxMachineID = int64(-1) ^ (int64(-1) << machineBits)

	maxSequence = int64(-1) ^ (int64(-1) << sequenceBits)

	machineShift   = sequenceBits
	timestampShift = sequenceBits + machineBits
)

// ID is a decomposed snowflake identifier.
type ID struct {
	// Timestamp is the generation time at millisecond resolution.
	Timestamp time.Time
	// MachineID is the generator's machine id (0-1023).
	MachineID int64
	// Sequence is the per-millisecond counter (0-4095).
	Sequence int64
}

// Generator produces unique time-ordered IDs. All callers serialize through
// a single mutex; the critical section is a handful of integer operations,
// so contention stays cheap under concurrent insertion load.
type Generator struct {
	mu sync.Mutex

	machineID     int64
	lastTimestamp int64
	sequence      int64

	// now is the millisecond clock, replaceable in tests.
	now func() int64
}

// New creates a Generator for the given machine id.
// Returns a configuration error if machineID is outside [0, 1023].
func New(machineID int64) (*Generator, error) {
	if machineID < 0 || machineID > MaxMachineID {
		return nil, ferrors.New(ferrors.ErrCodeMachineIDRange,
			fmt.Sprintf("machine id must be in [0, %d], got %d", MaxMachineID, machineID), nil)
	}

	return &Generator{
		machineID:     machineID,
		lastTimestamp: -1,
		now:           nowMillis,
	}, nil
}

// Next returns the next unique identifier.
//
// If the wall clock moved backward, Next busy-polls until the clock passes
// the last issued timestamp. Uniqueness and ordering are preserved at the
// cost of blocking latency; a large backward jump is reported as a warning
// since no correctness is lost.
func (g *Generator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now()

	if ts < g.lastTimestamp {
		slog.Warn("clock moved backward, blocking until it catches up",
			slog.Int64("last_timestamp", g.lastTimestamp),
			slog.Int64("clock", ts),
			slog.Int64("drift_ms", g.lastTimestamp-ts))
		for ts <= g.lastTimestamp {
			ts = g.now()
		}
	}

	if ts == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond.
			for ts <= g.lastTimestamp {
				ts = g.now()
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = ts

	return uint64(ts-Epoch)<<timestampShift |
		uint64(g.machineID)<<machineShift |
		uint64(g.sequence)
}

// MachineID returns the generator's machine id.
func (g *Generator) MachineID() int64 {
	return g.machineID
}

// Parse decomposes an identifier into its timestamp, machine id, and
// sequence. It is the exact inverse of Next's composition: purely
// arithmetic, no shared state, never fails.
func Parse(id uint64) ID {
	ms := int64(id>>timestampShift) + Epoch
	return ID{
		Timestamp: time.UnixMilli(ms).UTC(),
		MachineID: int64(id>>machineShift) & MaxMachineID,
		Sequence:  int64(id) & maxSequence,
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
