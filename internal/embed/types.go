// Package embed defines the embedding provider port consumed by semantic
// search, plus the built-in providers: a deterministic static embedder and
// an Ollama HTTP client with built-in retry, and a caching wrapper.
package embed

import (
	"context"
	"time"
)

// Embedder produces fixed-dimension vectors for free text.
// Absence of a working embedder is not an error condition for the engine:
// semantic retrieval degrades to an empty layer.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// IsAvailable reports whether the provider can currently serve requests.
	IsAvailable(ctx context.Context) bool

	// Dimension returns the embedding dimension.
	Dimension() int
}

// Default provider settings.
const (
	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for transient failures.
	DefaultMaxRetries = 3

	// DefaultCacheSize is the embed-cache capacity.
	DefaultCacheSize = 4096
)
