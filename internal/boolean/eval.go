package boolean

import (
	"strings"

	"github.com/Aman-CERP/graphmem/internal/graph"
	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// Evaluator decides whether an entity matches an AST. It is a pure function
// of the AST and the entity's lower-case view, plus an optional fast path
// for observation-word membership.
type Evaluator struct {
	// HasObservationWord reports whether the named entity's observations
	// contain the exact token. When set, observation: predicates with a
	// single simple word use it as an O(1) positive-match shortcut; a miss
	// still falls back to substring matching, since the word index and the
	// query value may split differently.
	HasObservationWord func(entityName, word string) bool
}

// Evaluate reports whether the entity matches the AST. name is the entity's
// canonical (original-case) name; le is its lower-cased view.
func (ev *Evaluator) Evaluate(n *Node, name string, le *graph.LoweredEntity) bool {
	switch n.Kind {
	case KindTerm, KindPhrase:
		return ev.matchLeaf(n, name, le)
	case KindAnd:
		for _, c := range n.Children {
			if !ev.Evaluate(c, name, le) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range n.Children {
			if ev.Evaluate(c, name, le) {
				return true
			}
		}
		return false
	case KindNot:
		return !ev.Evaluate(n.Children[0], name, le)
	}
	return false
}

func (ev *Evaluator) matchLeaf(n *Node, name string, le *graph.LoweredEntity) bool {
	value := n.Value

	switch n.Field {
	case "name":
		return strings.Contains(le.Name, value)
	case "type":
		return strings.Contains(le.EntityType, value)
	case "tag":
		for _, tag := range le.Tags {
			if tag == value {
				return true
			}
		}
		return false
	case "observation":
		if ev.HasObservationWord != nil && textutil.IsSimpleWord(value) {
			if ev.HasObservationWord(name, value) {
				return true
			}
		}
		return containsAny(le.Observations, value)
	default:
		// Unscoped: match anywhere in the entity's text.
		if strings.Contains(le.Name, value) || strings.Contains(le.EntityType, value) {
			return true
		}
		if containsAny(le.Observations, value) {
			return true
		}
		for _, tag := range le.Tags {
			if strings.Contains(tag, value) {
				return true
			}
		}
		return false
	}
}

func containsAny(haystacks []string, needle string) bool {
	for _, h := range haystacks {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

// EstimateCost approximates evaluation cost per entity: leaves cost one
// field scan, observation substring fallbacks are pricier, and operator
// nodes sum their children. Evaluation does not reorder predicates by it.
func EstimateCost(n *Node) int {
	switch n.Kind {
	case KindTerm, KindPhrase:
		switch n.Field {
		case "tag", "type", "name":
			return 1
		case "observation":
			return 3
		default:
			return 4
		}
	case KindNot:
		return EstimateCost(n.Children[0])
	default:
		cost := 1
		for _, c := range n.Children {
			cost += EstimateCost(c)
		}
		return cost
	}
}
