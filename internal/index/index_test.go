package index

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemove_DocFreqInvariant(t *testing.T) {
	idx := New(DefaultConfig())

	idx.Add("A", "budget travel hotel")
	idx.Add("B", "budget travel")
	idx.Add("C", "enterprise budget")

	assert.Equal(t, 3, idx.DocFreq("budget"))
	assert.Equal(t, 2, idx.DocFreq("travel"))
	assert.Equal(t, 1, idx.DocFreq("hotel"))
	assert.Equal(t, 0, idx.DocFreq("cruise"))

	idx.Remove("B")
	assert.Equal(t, 2, idx.DocFreq("budget"))
	assert.Equal(t, 1, idx.DocFreq("travel"))

	// Replacing a doc reverses its old contributions first.
	idx.Add("A", "enterprise plans")
	assert.Equal(t, 1, idx.DocFreq("budget"))
	assert.Equal(t, 0, idx.DocFreq("hotel"))
	assert.Equal(t, 2, idx.DocFreq("enterprise"))

	idx.Remove("A")
	idx.Remove("C")
	assert.Equal(t, 0, idx.DocCount())
	assert.Equal(t, 0.0, idx.AvgDocLength())
}

// df(t) must equal the count of distinct docs containing t after any
// interleaving of adds and removes.
func TestDocFreq_RandomishSequence(t *testing.T) {
	idx := New(DefaultConfig())
	docs := map[string]string{}

	ops := []struct {
		add  bool
		id   string
		text string
	}{
		{true, "d1", "alpha beta gamma"},
		{true, "d2", "alpha alpha beta"},
		{true, "d3", "gamma delta"},
		{false, "d2", ""},
		{true, "d4", "beta delta delta"},
		{false, "d1", ""},
		{true, "d2", "alpha gamma"},
	}

	for _, op := range ops {
		if op.add {
			idx.Add(op.id, op.text)
			docs[op.id] = op.text
		} else {
			idx.Remove(op.id)
			delete(docs, op.id)
		}

		for _, term := range []string{"alpha", "beta", "gamma", "delta"} {
			want := 0
			for _, text := range docs {
				if containsToken(text, term) {
					want++
				}
			}
			assert.Equal(t, want, idx.DocFreq(term), "df(%s) after ops", term)
		}
	}
}

func containsToken(text, term string) bool {
	for _, tok := range tokenizeForTest(text) {
		if tok == term {
			return true
		}
	}
	return false
}

func tokenizeForTest(text string) []string {
	idx := New(DefaultConfig())
	return idx.tokenize(text)
}

func TestSearchTFIDF_Monotonicity(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add("A", "budget travel hotel")
	idx.Add("B", "budget travel")
	idx.Add("C", "enterprise budget")

	results := idx.SearchTFIDF("budget travel", 3)
	require.Len(t, results, 3)

	// "budget" appears in every doc, so its idf term log((N+1)/(df+1)) is
	// zero; ranking is carried by "travel" with the name tie-break.
	assert.Equal(t, "A", results[0].ID)
	assert.Equal(t, "B", results[1].ID)
	assert.Equal(t, "C", results[2].ID)
	assert.Greater(t, results[0].Score, results[2].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
	assert.Greater(t, results[0].Score, 0.0)

	assert.Equal(t, []string{"budget", "travel"}, results[0].MatchedTerms)
	assert.Equal(t, []string{"budget"}, results[2].MatchedTerms)
}

func TestSearchTFIDF_ExactFormula(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add("A", "budget budget travel")
	idx.Add("B", "hotel")

	results := idx.SearchTFIDF("budget", 10)
	require.Len(t, results, 1)

	// tf=2, df=1, N=2: (1+ln 2) * ln(3/2)
	want := (1 + math.Log(2)) * math.Log(3.0/2.0)
	assert.InDelta(t, want, results[0].Score, 1e-12)
}

func TestSearchBM25_ExactFormula(t *testing.T) {
	cfg := DefaultConfig()
	idx := New(cfg)
	idx.Add("A", "budget travel hotel")
	idx.Add("B", "budget")

	results := idx.SearchBM25("budget", 10)
	require.Len(t, results, 2)

	n, df := 2.0, 2.0
	idf := math.Log((n-df+0.5)/(df+0.5) + 1)
	avgDl := 2.0 // (3+1)/2

	scoreFor := func(tf, docLen float64) float64 {
		return idf * tf * (cfg.K1 + 1) / (tf + cfg.K1*(1-cfg.B+cfg.B*docLen/avgDl))
	}

	// Shorter doc ranks first under length normalization.
	assert.Equal(t, "B", results[0].ID)
	assert.InDelta(t, scoreFor(1, 1), results[0].Score, 1e-12)
	assert.InDelta(t, scoreFor(1, 3), results[1].Score, 1e-12)
}

func TestSearch_TieBreakByID(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add("B", "widget")
	idx.Add("A", "widget")

	results := idx.SearchTFIDF("widget", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ID)
	assert.Equal(t, "B", results[1].ID)
}

func TestSearch_ShortAndStopTermsIgnored(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add("A", "the cat sat on a mat")

	// "on" is under min length, "the" is a stop word.
	assert.Empty(t, idx.SearchTFIDF("on the", 10))
	assert.Equal(t, 0, idx.DocFreq("the"))
	assert.Equal(t, 1, idx.DocFreq("cat"))
}

func TestRebuild(t *testing.T) {
	idx := New(DefaultConfig())
	for i := 0; i < 5; i++ {
		idx.Add(fmt.Sprintf("d%d", i), "stale content")
	}

	idx.Rebuild(map[string]string{"X": "fresh content", "Y": "fresh words"})

	assert.Equal(t, 2, idx.DocCount())
	assert.Equal(t, 0, idx.DocFreq("stale"))
	assert.Equal(t, 2, idx.DocFreq("fresh"))
}

func TestAvgDocLength_Incremental(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add("A", "alpha beta gamma") // 3 tokens
	idx.Add("B", "alpha")            // 1 token
	assert.InDelta(t, 2.0, idx.AvgDocLength(), 1e-12)

	idx.Remove("B")
	assert.InDelta(t, 3.0, idx.AvgDocLength(), 1e-12)
}

func TestNewKeyword_Fallback(t *testing.T) {
	kw, err := NewKeyword("memory", DefaultConfig())
	require.NoError(t, err)
	_, isMem := kw.(*Index)
	assert.True(t, isMem)

	kw, err = NewKeyword("unknown", DefaultConfig())
	require.NoError(t, err)
	_, isMem = kw.(*Index)
	assert.True(t, isMem)
}
