package chunk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

func positions(ps ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(ps))
	for _, p := range ps {
		m[p] = struct{}{}
	}
	return m
}

func TestScore_Bounds(t *testing.T) {
	tests := []struct {
		name  string
		chunk *Chunk
		pos   map[int]struct{}
	}{
		{"full coverage long chunk", &Chunk{StartPos: 0, EndPos: 500, ContentLength: 500}, positions(1, 2, 3)},
		{"no coverage", &Chunk{StartPos: 0, EndPos: 10, ContentLength: 10}, positions(100, 200)},
		{"empty positions", &Chunk{StartPos: 0, EndPos: 10, ContentLength: 10}, positions()},
		{"tiny chunk", &Chunk{StartPos: 0, EndPos: 1, ContentLength: 1}, positions(0)},
		{"oversized chunk", &Chunk{StartPos: 0, EndPos: 5000, ContentLength: 5000}, positions(4999)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Score(tt.chunk, tt.pos)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestScore_EmptyPositionsIsLengthFactorOnly(t *testing.T) {
	c := &Chunk{StartPos: 0, EndPos: 250, ContentLength: 250}

	// Coverage term vanishes: score == 0.3 * (250/500).
	assert.InDelta(t, 0.3*0.5, Score(c, nil), 1e-9)
	assert.InDelta(t, 0.3*0.5, Score(c, positions()), 1e-9)
}

func TestScore_CoverageFraction(t *testing.T) {
	c := &Chunk{StartPos: 100, EndPos: 600, ContentLength: 500}

	// 2 of 4 positions fall inside [100, 600).
	score := Score(c, positions(50, 100, 599, 600))
	require.InDelta(t, 0.7*0.5+0.3*1.0, score, 1e-9)
}

func TestScore_LengthFactorSaturates(t *testing.T) {
	exact := &Chunk{StartPos: 0, EndPos: 500, ContentLength: 500}
	huge := &Chunk{StartPos: 0, EndPos: 2000, ContentLength: 2000}

	assert.Equal(t, Score(exact, nil), Score(huge, nil))
}

func TestScore_RewardsCoverageOverLength(t *testing.T) {
	covered := &Chunk{StartPos: 0, EndPos: 100, ContentLength: 100}
	long := &Chunk{StartPos: 500, EndPos: 1000, ContentLength: 500}

	ps := positions(10, 20, 30)
	assert.Greater(t, Score(covered, ps), Score(long, ps))
}
