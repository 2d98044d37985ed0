package search

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// QuestionType classifies the intent of a query.
type QuestionType string

const (
	QuestionFactual     QuestionType = "factual"
	QuestionReasoning   QuestionType = "reasoning"
	QuestionPlanning    QuestionType = "planning"
	QuestionProcedural  QuestionType = "procedural"
	QuestionComparative QuestionType = "comparative"
	QuestionExploratory QuestionType = "exploratory"
)

// InfoType names a category of information a query requires.
type InfoType string

const (
	InfoPerson       InfoType = "person"
	InfoLocation     InfoType = "location"
	InfoOrganization InfoType = "organization"
	InfoTemporal     InfoType = "temporal"
	InfoNumeric      InfoType = "numeric"
	InfoCausal       InfoType = "causal"
)

// TemporalRange is a time window extracted from the query.
type TemporalRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Analysis is the heuristic NLP breakdown of a raw query.
type Analysis struct {
	Query             string         `json:"query"`
	QuestionType      QuestionType   `json:"questionType"`
	Complexity        float64        `json:"complexity"`
	Confidence        float64        `json:"confidence"`
	RequiredInfoTypes []InfoType     `json:"requiredInfoTypes,omitempty"`
	Persons           []string       `json:"persons,omitempty"`
	Locations         []string       `json:"locations,omitempty"`
	Organizations     []string       `json:"organizations,omitempty"`
	TemporalRange     *TemporalRange `json:"temporalRange,omitempty"`
	Keywords          []string       `json:"keywords,omitempty"`
}

// questionCues maps leading question words to types and required info.
var questionCues = []struct {
	word  string
	qtype QuestionType
	info  []InfoType
}{
	{"who", QuestionFactual, []InfoType{InfoPerson}},
	{"whom", QuestionFactual, []InfoType{InfoPerson}},
	{"where", QuestionFactual, []InfoType{InfoLocation}},
	{"when", QuestionFactual, []InfoType{InfoTemporal}},
	{"why", QuestionReasoning, []InfoType{InfoCausal}},
	{"how many", QuestionFactual, []InfoType{InfoNumeric}},
	{"how much", QuestionFactual, []InfoType{InfoNumeric}},
	{"how", QuestionProcedural, nil},
	{"what", QuestionFactual, nil},
	{"which", QuestionComparative, nil},
}

// reasoningCues mark multi-hop or causal queries.
var reasoningCues = []string{"because", "cause", "reason", "explain", "relationship", "connect", "depend", "lead to", "result in"}

// planningCues mark forward-looking queries.
var planningCues = []string{"plan", "schedule", "organize", "prepare", "roadmap", "next steps", "strategy"}

// comparativeCues mark comparison queries.
var comparativeCues = []string{"compare", "versus", " vs ", "difference", "better", "worse", "prefer"}

// orgSuffixes hint at organization names.
var orgSuffixes = []string{"inc", "corp", "ltd", "llc", "gmbh", "labs", "systems", "technologies"}

var (
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	numberRe      = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

// Analyzer turns raw queries into analyses using keyword tables, regular
// expressions, and natural-language date parsing. No external model.
type Analyzer struct {
	dates *when.Parser
	now   func() time.Time
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer() *Analyzer {
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
	return &Analyzer{dates: parser, now: time.Now}
}

// Analyze produces the analysis for a raw query.
func (a *Analyzer) Analyze(query string) *Analysis {
	folded := textutil.FoldCase(query)
	an := &Analysis{
		Query:        query,
		QuestionType: QuestionExploratory,
		Confidence:   0.4,
	}

	infoSet := map[InfoType]struct{}{}

	// Question-word classification; first cue wins.
	for _, cue := range questionCues {
		if strings.HasPrefix(folded, cue.word+" ") || folded == cue.word ||
			strings.Contains(folded, " "+cue.word+" ") {
			an.QuestionType = cue.qtype
			an.Confidence = 0.8
			for _, it := range cue.info {
				infoSet[it] = struct{}{}
			}
			break
		}
	}

	// Cue tables can override towards richer types.
	switch {
	case containsAnyCue(folded, reasoningCues):
		an.QuestionType = QuestionReasoning
		infoSet[InfoCausal] = struct{}{}
	case containsAnyCue(folded, planningCues):
		an.QuestionType = QuestionPlanning
	case containsAnyCue(folded, comparativeCues):
		an.QuestionType = QuestionComparative
	}

	// Named entities from capitalization shape.
	for _, candidate := range capitalizedRe.FindAllString(query, -1) {
		candidate = trimLeadingQuestionWords(candidate)
		if candidate == "" {
			continue
		}
		lower := strings.ToLower(candidate)
		if hasOrgSuffix(lower) {
			an.Organizations = append(an.Organizations, candidate)
			infoSet[InfoOrganization] = struct{}{}
			continue
		}
		an.Persons = append(an.Persons, candidate)
	}
	if len(an.Persons) > 0 {
		infoSet[InfoPerson] = struct{}{}
	}

	if numberRe.MatchString(folded) {
		infoSet[InfoNumeric] = struct{}{}
	}

	// Natural-language date expressions set a temporal window.
	if r, err := a.dates.Parse(query, a.now()); err == nil && r != nil {
		day := r.Time.Truncate(24 * time.Hour)
		an.TemporalRange = &TemporalRange{Start: day, End: day.Add(24 * time.Hour)}
		infoSet[InfoTemporal] = struct{}{}
	}

	for _, it := range []InfoType{InfoPerson, InfoLocation, InfoOrganization, InfoTemporal, InfoNumeric, InfoCausal} {
		if _, ok := infoSet[it]; ok {
			an.RequiredInfoTypes = append(an.RequiredInfoTypes, it)
		}
	}

	an.Keywords = contentKeywords(folded)
	an.Complexity = complexityOf(an)
	return an
}

func containsAnyCue(folded string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(folded, cue) {
			return true
		}
	}
	return false
}

func isQuestionWord(lower string) bool {
	switch lower {
	case "who", "whom", "where", "when", "why", "how", "what", "which", "is", "are", "the", "did", "does", "do":
		return true
	}
	return false
}

// trimLeadingQuestionWords drops sentence-initial question and auxiliary
// words from a capitalized span, so "Did Alice" extracts as "Alice".
func trimLeadingQuestionWords(candidate string) string {
	words := strings.Fields(candidate)
	for len(words) > 0 && isQuestionWord(strings.ToLower(words[0])) {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func hasOrgSuffix(lower string) bool {
	for _, suffix := range orgSuffixes {
		if strings.HasSuffix(lower, " "+suffix) || strings.HasSuffix(lower, suffix+".") {
			return true
		}
	}
	return false
}

// contentKeywords drops question/stop words and returns the content tokens.
func contentKeywords(folded string) []string {
	stop := textutil.BuildStopWordMap(textutil.DefaultStopWords)
	var keywords []string
	for _, tok := range textutil.Tokenize(folded) {
		if isQuestionWord(tok) {
			continue
		}
		if _, isStop := stop[tok]; isStop {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

// complexityOf estimates query complexity in [0,1].
func complexityOf(an *Analysis) float64 {
	c := 0.1
	c += 0.1 * float64(len(an.RequiredInfoTypes))
	c += 0.05 * float64(len(an.Keywords))
	switch an.QuestionType {
	case QuestionReasoning, QuestionComparative:
		c += 0.25
	case QuestionPlanning:
		c += 0.2
	case QuestionExploratory:
		c += 0.1
	}
	if c > 1 {
		c = 1
	}
	return c
}
