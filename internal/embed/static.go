package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

// Static generates deterministic hash-based embeddings with no model,
// no network, and no downloads. Tokens and character n-grams are hashed
// into fixed positions; the n-gram channel gives CJK and misspelled
// text partial overlap. Semantic quality is far below a real model but
// similar texts still land near each other.
type Static struct {
	dim int
}

// NewStatic creates a static embedder with the given dimension.
func NewStatic(dim int) *Static {
	return &Static{dim: dim}
}

func (e *Static) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dim), nil
	}

	vector := make([]float32, e.dim)

	for _, token := range staticTokenize(trimmed) {
		vector[hashToIndex(token, e.dim)] += staticTokenWeight
	}
	for _, ngram := range staticNgrams(trimmed, staticNgramSize) {
		vector[hashToIndex(ngram, e.dim)] += staticNgramWeight
	}

	normalizeVector(vector)
	return vector, nil
}

func (e *Static) Dimensions() int { return e.dim }

func (e *Static) Name() string { return "static" }

// staticTokenize lowercases and splits on non-letter, non-digit runes.
// Each CJK rune becomes its own token.
func staticTokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// staticNgrams extracts sliding character windows from the lowercased,
// letter-and-digit-only form of text.
func staticNgrams(text string, n int) []string {
	var stripped []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			stripped = append(stripped, r)
		}
	}
	if len(stripped) < n {
		return nil
	}

	ngrams := make([]string, 0, len(stripped)-n+1)
	for i := 0; i+n <= len(stripped); i++ {
		ngrams = append(ngrams, string(stripped[i:i+n]))
	}
	return ngrams
}

func hashToIndex(s string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dim))
}

func normalizeVector(v []float32) {
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

var _ Embedder = (*Static)(nil)
