// Package index provides the hybrid index manager combining vector
// similarity and keyword search over sub-document chunks. Results are
// fused with weighted min-max score normalization.
package index

import (
	"sort"

	"github.com/findex-dev/findex/internal/store"
)

// FusedResult is a single result after score fusion.
type FusedResult struct {
	// Ordinal is the dense index position of the document.
	Ordinal uint64 `json:"ordinal"`
	// DocID is the external document key.
	DocID string `json:"doc_id"`
	// Score is the combined weighted score.
	Score float64 `json:"score"`
	// VectorScore and TextScore are the normalized per-list scores
	// in [0, 1]; 0 when the document was absent from that list.
	VectorScore float64 `json:"vector_score"`
	TextScore   float64 `json:"text_score"`
	// InBothLists reports appearance in both result lists.
	InBothLists bool `json:"in_both_lists"`
	// MatchedTerms are the analyzed terms that matched in text search.
	MatchedTerms []string `json:"matched_terms,omitempty"`
	// Metadata is the document metadata captured at indexing time.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Weights holds the fusion weights for the two search sides.
type Weights struct {
	Vector float64
	Text   float64
}

// fuseMinMax combines vector and text results using per-list min-max
// normalization and a weighted sum.
//
// score(d) = wv * norm_v(d) + wt * norm_t(d), missing side contributes 0.
//
// Sorted by: Score desc, InBothLists (true first), Ordinal asc.
func fuseMinMax(
	vec []*store.VectorResult,
	text []*store.TextResult,
	textOrdinals map[string]uint64,
	weights Weights,
) []*FusedResult {
	if len(vec) == 0 && len(text) == 0 {
		return []*FusedResult{}
	}

	fused := make(map[uint64]*FusedResult, len(vec)+len(text))

	vecScores := make([]float64, len(vec))
	for i, r := range vec {
		vecScores[i] = float64(r.Score)
	}
	vecMin, vecMax := minMax(vecScores)

	for _, r := range vec {
		fused[r.Ordinal] = &FusedResult{
			Ordinal:     r.Ordinal,
			VectorScore: normalizeScore(float64(r.Score), vecMin, vecMax),
		}
	}

	textScores := make([]float64, len(text))
	for i, r := range text {
		textScores[i] = r.Score
	}
	textMin, textMax := minMax(textScores)

	for _, r := range text {
		ordinal, ok := textOrdinals[r.DocID]
		if !ok {
			continue
		}
		normalized := normalizeScore(r.Score, textMin, textMax)

		if existing, ok := fused[ordinal]; ok {
			existing.TextScore = normalized
			existing.MatchedTerms = r.MatchedTerms
			existing.InBothLists = true
		} else {
			fused[ordinal] = &FusedResult{
				Ordinal:      ordinal,
				TextScore:    normalized,
				MatchedTerms: r.MatchedTerms,
			}
		}
	}

	results := make([]*FusedResult, 0, len(fused))
	for _, r := range fused {
		r.Score = weights.Vector*r.VectorScore + weights.Text*r.TextScore
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		return a.Ordinal < b.Ordinal
	})

	return results
}

// minMax returns the min and max of a non-empty slice; zeros otherwise.
func minMax(scores []float64) (float64, float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}

// normalizeScore maps score into [0, 1] given list min and max.
// A constant list (max == min) maps everything to 1 so a single result
// still carries full weight.
func normalizeScore(score, lo, hi float64) float64 {
	if hi == lo {
		return 1.0
	}
	return (score - lo) / (hi - lo)
}
