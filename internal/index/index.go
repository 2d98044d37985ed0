// Package index provides the in-memory inverted index with TF-IDF and BM25
// scoring, plus an optional Bleve-backed keyword backend.
//
// The in-memory index is the default: it maintains postings, per-document
// length, and global document frequency incrementally so that df(t) always
// equals the number of distinct documents containing t.
package index

import (
	"math"
	"sort"
	"sync"

	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// Config configures tokenization and BM25 parameters.
type Config struct {
	// MinTermLength is the minimum token length to index (default: 3).
	MinTermLength int

	// StopWords are dropped during tokenization.
	StopWords []string

	// K1 is the BM25 term-frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the BM25 length normalization parameter (default: 0.75).
	B float64
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() Config {
	return Config{
		MinTermLength: 3,
		StopWords:     textutil.DefaultStopWords,
		K1:            1.2,
		B:             0.75,
	}
}

// Scored is a single scored document.
type Scored struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// Stats summarizes the index.
type Stats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// Index is an inverted index over document text with incremental updates.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[string]int // term -> doc -> tf
	docTerms map[string]map[string]int // doc -> term -> tf (for removal)
	docLen   map[string]int
	totalLen int
	cfg      Config
	stop     map[string]struct{}
}

// New creates an empty index.
func New(cfg Config) *Index {
	if cfg.MinTermLength <= 0 {
		cfg.MinTermLength = 3
	}
	if cfg.K1 == 0 {
		cfg.K1 = 1.2
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}
	return &Index{
		postings: make(map[string]map[string]int),
		docTerms: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		cfg:      cfg,
		stop:     textutil.BuildStopWordMap(cfg.StopWords),
	}
}

// tokenize applies the index's tokenization policy.
func (idx *Index) tokenize(text string) []string {
	return textutil.FilterTokens(textutil.Tokenize(text), idx.cfg.MinTermLength, idx.stop)
}

// Add indexes a document. If the id already exists it is replaced.
func (idx *Index) Add(id string, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(id)

	tokens := idx.tokenize(text)
	terms := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		terms[tok]++
	}

	for term, tf := range terms {
		posting, ok := idx.postings[term]
		if !ok {
			posting = make(map[string]int)
			idx.postings[term] = posting
		}
		posting[id] = tf
	}
	idx.docTerms[id] = terms
	idx.docLen[id] = len(tokens)
	idx.totalLen += len(tokens)
}

// Remove deletes a document, reversing its contributions.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) {
	terms, ok := idx.docTerms[id]
	if !ok {
		return
	}
	for term := range terms {
		if posting, ok := idx.postings[term]; ok {
			delete(posting, id)
			if len(posting) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	idx.totalLen -= idx.docLen[id]
	delete(idx.docLen, id)
	delete(idx.docTerms, id)
}

// Rebuild clears the index and re-adds all documents.
// Maintenance operation; scoring state is recomputed from scratch.
func (idx *Index) Rebuild(docs map[string]string) {
	idx.mu.Lock()
	idx.postings = make(map[string]map[string]int)
	idx.docTerms = make(map[string]map[string]int)
	idx.docLen = make(map[string]int)
	idx.totalLen = 0
	idx.mu.Unlock()

	for id, text := range docs {
		idx.Add(id, text)
	}
}

// Contains reports whether the document is indexed.
func (idx *Index) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.docTerms[id]
	return ok
}

// DocCount returns the number of indexed documents.
func (idx *Index) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docTerms)
}

// DocFreq returns the number of distinct documents containing term.
func (idx *Index) DocFreq(term string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.postings[term])
}

// AvgDocLength returns the mean indexed token count per document.
func (idx *Index) AvgDocLength() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.avgDocLengthLocked()
}

func (idx *Index) avgDocLengthLocked() float64 {
	if len(idx.docLen) == 0 {
		return 0
	}
	return float64(idx.totalLen) / float64(len(idx.docLen))
}

// Stats returns index statistics.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		DocumentCount: len(idx.docTerms),
		TermCount:     len(idx.postings),
		AvgDocLength:  idx.avgDocLengthLocked(),
	}
}

// SearchTFIDF scores documents against the query using
// score(t,d) = (1 + log(tf)) * log((N+1)/(df+1)), summed over query terms.
// Results are sorted by score descending, ties by id ascending.
func (idx *Index) SearchTFIDF(query string, limit int) []Scored {
	return idx.search(query, limit, idx.tfidfTermScore)
}

// SearchBM25 scores documents using Okapi BM25:
// idf(t) * tf*(k1+1) / (tf + k1*(1 - b + b*|d|/avgDl)),
// idf(t) = log((N-df+0.5)/(df+0.5) + 1).
func (idx *Index) SearchBM25(query string, limit int) []Scored {
	return idx.search(query, limit, idx.bm25TermScore)
}

type termScorer func(tf int, df int, docLen int, n int, avgDl float64) float64

func (idx *Index) tfidfTermScore(tf, df, _ int, n int, _ float64) float64 {
	return (1 + math.Log(float64(tf))) * math.Log(float64(n+1)/float64(df+1))
}

func (idx *Index) bm25TermScore(tf, df, docLen int, n int, avgDl float64) float64 {
	idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
	norm := 1 - idx.cfg.B
	if avgDl > 0 {
		norm += idx.cfg.B * float64(docLen) / avgDl
	}
	ftf := float64(tf)
	return idf * ftf * (idx.cfg.K1 + 1) / (ftf + idx.cfg.K1*norm)
}

func (idx *Index) search(query string, limit int, score termScorer) []Scored {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := idx.tokenize(query)
	if len(terms) == 0 {
		return []Scored{}
	}

	n := len(idx.docTerms)
	avgDl := idx.avgDocLengthLocked()

	scores := make(map[string]float64)
	matched := make(map[string][]string)
	seen := make(map[string]struct{}, len(terms))

	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		posting, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := len(posting)
		for id, tf := range posting {
			scores[id] += score(tf, df, idx.docLen[id], n, avgDl)
			matched[id] = append(matched[id], term)
		}
	}

	results := make([]Scored, 0, len(scores))
	for id, s := range scores {
		terms := matched[id]
		sort.Strings(terms)
		results = append(results, Scored{ID: id, Score: s, MatchedTerms: terms})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
