package chunk

// Relevance scoring weights. Coverage dominates; the length factor
// slightly penalizes very short chunks whose apparent coverage is an
// artifact of size rather than relevance.
const (
	coverageWeight = 0.7
	lengthWeight   = 0.3

	// lengthNorm is the content length at which the length factor
	// saturates at 1.0.
	lengthNorm = 500.0
)

// Score rates a chunk's relevance given the character positions at which
// query terms occurred in the parent document. The result is in [0, 1].
//
//	coverage      = |positions inside chunk| / |positions|  (0 if none given)
//	length_factor = min(content_length / 500, 1.0)
//	score         = 0.7*coverage + 0.3*length_factor
func Score(c *Chunk, queryPositions map[int]struct{}) float64 {
	coverage := 0.0
	if len(queryPositions) > 0 {
		inside := 0
		for p := range queryPositions {
			if c.ContainsPosition(p) {
				inside++
			}
		}
		coverage = float64(inside) / float64(len(queryPositions))
	}

	lengthFactor := float64(c.ContentLength) / lengthNorm
	if lengthFactor > 1.0 {
		lengthFactor = 1.0
	}

	return coverageWeight*coverage + lengthWeight*lengthFactor
}
