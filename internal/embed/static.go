package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// StaticDimension is the vector dimension of the static embedder.
const StaticDimension = 256

// Feature weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder generates embeddings by hashing tokens and character
// n-grams into a fixed-size vector. Deterministic, dependency-free, always
// available; reduced semantic quality compared to a model-backed provider.
type StaticEmbedder struct{}

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, StaticDimension)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector, nil
	}

	for _, token := range textutil.Tokenize(trimmed) {
		vector[hashToIndex(token)] += tokenWeight
	}
	normalized := strings.ToLower(trimmed)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram)] += ngramWeight
	}

	return normalizeVector(vector), nil
}

// IsAvailable always reports true.
func (e *StaticEmbedder) IsAvailable(ctx context.Context) bool {
	return true
}

// Dimension returns the embedding dimension.
func (e *StaticEmbedder) Dimension() int {
	return StaticDimension
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % StaticDimension)
}

func extractNgrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
