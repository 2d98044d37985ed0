package search

import "strings"

// ExecutionStrategy selects how a plan's sub-queries run.
type ExecutionStrategy string

const (
	// StrategySingle runs one hybrid sub-query.
	StrategySingle ExecutionStrategy = "single"
	// StrategyIterative runs the reflection loop.
	StrategyIterative ExecutionStrategy = "iterative"
	// StrategyParallel runs focused sub-queries and merges.
	StrategyParallel ExecutionStrategy = "parallel"
)

// MergeStrategy selects how sub-query results combine.
type MergeStrategy string

const (
	MergeUnion    MergeStrategy = "union"
	MergeWeighted MergeStrategy = "weighted"
)

// SubQuery is one focused retrieval within a plan.
type SubQuery struct {
	Query string `json:"query"`
	// Focus is the info type this sub-query targets, empty for the main query.
	Focus InfoType `json:"focus,omitempty"`
}

// Plan is the executable strategy for a query.
type Plan struct {
	SubQueries          []SubQuery        `json:"subQueries"`
	ExecutionStrategy   ExecutionStrategy `json:"executionStrategy"`
	MergeStrategy       MergeStrategy     `json:"mergeStrategy"`
	EstimatedComplexity float64           `json:"estimatedComplexity"`
}

// infoTypeKeywords associates info types with the keywords appended when a
// sub-query (or refinement) focuses on them.
var infoTypeKeywords = map[InfoType][]string{
	InfoPerson:       {"who", "person", "people"},
	InfoLocation:     {"where", "location", "place"},
	InfoOrganization: {"organization", "company"},
	InfoTemporal:     {"when", "date", "time"},
	InfoNumeric:      {"number", "amount", "count"},
	InfoCausal:       {"why", "cause", "reason"},
}

// Planner converts analyses into plans.
type Planner struct{}

// NewPlanner creates a planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan picks a strategy for the analyzed query:
//   - simple factual queries run as one hybrid sub-query;
//   - reasoning and comparative queries fan out one focused sub-query per
//     required info type and merge weighted;
//   - planning and exploratory queries use the iterative reflection loop.
func (p *Planner) Plan(an *Analysis) *Plan {
	plan := &Plan{
		EstimatedComplexity: an.Complexity,
		MergeStrategy:       MergeUnion,
	}

	switch an.QuestionType {
	case QuestionReasoning, QuestionComparative:
		plan.ExecutionStrategy = StrategyParallel
		plan.MergeStrategy = MergeWeighted
		plan.SubQueries = append(plan.SubQueries, SubQuery{Query: an.Query})
		for _, it := range an.RequiredInfoTypes {
			plan.SubQueries = append(plan.SubQueries, SubQuery{
				Query: focusQuery(an, it),
				Focus: it,
			})
		}
	case QuestionPlanning, QuestionExploratory:
		plan.ExecutionStrategy = StrategyIterative
		plan.SubQueries = []SubQuery{{Query: an.Query}}
	default:
		plan.ExecutionStrategy = StrategySingle
		plan.SubQueries = []SubQuery{{Query: an.Query}}
		if an.Complexity > 0.6 {
			plan.ExecutionStrategy = StrategyIterative
		}
	}

	return plan
}

// focusQuery builds a sub-query biased towards one info type: the content
// keywords plus the info type's cue words.
func focusQuery(an *Analysis, it InfoType) string {
	parts := append([]string(nil), an.Keywords...)
	parts = append(parts, infoTypeKeywords[it]...)
	return strings.Join(parts, " ")
}
