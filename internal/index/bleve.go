package index

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Keyword is the narrow interface the BM25 retriever needs, so the Bleve
// backend can substitute for the in-memory index.
type Keyword interface {
	Add(id string, text string)
	Remove(id string)
	SearchBM25(query string, limit int) []Scored
	DocCount() int
}

var _ Keyword = (*Index)(nil)
var _ Keyword = (*BleveIndex)(nil)

// BleveIndex is an alternative keyword backend on Bleve's in-memory index.
// Bleve owns tokenization and scoring here; it trades the exact Okapi
// formula and df introspection for a mature full-text pipeline. Selected
// via the bm25.backend config option.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Text string `json:"text"`
}

// NewBleveIndex creates an in-memory Bleve keyword index.
func NewBleveIndex() (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveIndex{index: idx}, nil
}

// Add indexes a document, replacing any previous content for the id.
func (b *BleveIndex) Add(id string, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	_ = b.index.Index(id, bleveDocument{Text: text})
}

// Remove deletes a document.
func (b *BleveIndex) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	_ = b.index.Delete(id)
}

// SearchBM25 runs a match query and returns Bleve's scored hits.
func (b *BleveIndex) SearchBM25(query string, limit int) []Scored {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return []Scored{}
	}

	if limit <= 0 {
		limit = 10
	}
	match := bleve.NewMatchQuery(query)
	match.SetField("text")
	req := bleve.NewSearchRequestOptions(match, limit, 0, false)

	res, err := b.index.Search(req)
	if err != nil {
		return []Scored{}
	}

	results := make([]Scored, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, Scored{ID: hit.ID, Score: hit.Score})
	}
	return results
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	count, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(count)
}

// Close releases the underlying index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// Backend names for keyword index selection.
const (
	BackendMemory = "memory"
	BackendBleve  = "bleve"
)

// NewKeyword constructs the keyword backend by name. Unknown names fall back
// to the in-memory index.
func NewKeyword(backend string, cfg Config) (Keyword, error) {
	switch backend {
	case BackendBleve:
		return NewBleveIndex()
	default:
		return New(cfg), nil
	}
}
