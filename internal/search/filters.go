package search

import (
	"fmt"

	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// Pagination bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// filterFunc checks one filter criterion against an entity.
type filterFunc func(e *graph.Entity) bool

// ApplyFilters keeps entities matching every set filter (AND across
// criteria, OR within the tag list). Ranking order is preserved.
func ApplyFilters(results []*Result, f Filters) []*Result {
	if f.IsZero() {
		return results
	}

	filters := buildFilters(f)
	filtered := make([]*Result, 0, len(results))
	for _, r := range results {
		if matchesAll(r.Entity, filters) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func buildFilters(f Filters) []filterFunc {
	var filters []filterFunc

	if len(f.Tags) > 0 {
		required := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			if norm := textutil.NormalizeTag(tag); norm != "" {
				required = append(required, norm)
			}
		}
		filters = append(filters, func(e *graph.Entity) bool {
			for _, tag := range required {
				if e.HasTag(tag) {
					return true
				}
			}
			return false
		})
	}

	if f.MinImportance != nil || f.MaxImportance != nil {
		filters = append(filters, func(e *graph.Entity) bool {
			if e.Importance == nil {
				return false
			}
			if f.MinImportance != nil && *e.Importance < *f.MinImportance {
				return false
			}
			if f.MaxImportance != nil && *e.Importance > *f.MaxImportance {
				return false
			}
			return true
		})
	}

	if f.EntityType != "" {
		want := textutil.FoldCase(f.EntityType)
		filters = append(filters, func(e *graph.Entity) bool {
			return textutil.FoldCase(e.EntityType) == want
		})
	}

	if f.CreatedAfter != nil || f.CreatedBefore != nil {
		filters = append(filters, func(e *graph.Entity) bool {
			if e.CreatedAt.IsZero() {
				return false
			}
			if f.CreatedAfter != nil && e.CreatedAt.Before(*f.CreatedAfter) {
				return false
			}
			if f.CreatedBefore != nil && e.CreatedAt.After(*f.CreatedBefore) {
				return false
			}
			return true
		})
	}

	if f.ModifiedAfter != nil || f.ModifiedBefore != nil {
		filters = append(filters, func(e *graph.Entity) bool {
			if e.LastModified.IsZero() {
				return false
			}
			if f.ModifiedAfter != nil && e.LastModified.Before(*f.ModifiedAfter) {
				return false
			}
			if f.ModifiedBefore != nil && e.LastModified.After(*f.ModifiedBefore) {
				return false
			}
			return true
		})
	}

	return filters
}

func matchesAll(e *graph.Entity, filters []filterFunc) bool {
	for _, f := range filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// ValidatePage checks pagination. A negative offset or limit is not
// clamped: it is rejected with a validation error. A zero limit takes the
// default, and a limit above MaxPageLimit is clamped to it.
func ValidatePage(p Page) (Page, error) {
	if p.Offset < 0 {
		return p, errors.Validation(fmt.Sprintf("offset must be >= 0, got %d", p.Offset))
	}
	if p.Limit < 0 {
		return p, errors.Validation(fmt.Sprintf("limit must be >= 1, got %d", p.Limit))
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p, nil
}

// Paginate slices results by the validated page.
func Paginate(results []*Result, p Page) []*Result {
	if p.Offset >= len(results) {
		return []*Result{}
	}
	end := p.Offset + p.Limit
	if end > len(results) {
		end = len(results)
	}
	return results[p.Offset:end]
}
