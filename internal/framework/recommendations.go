package framework

import (
	"fmt"
	"sort"
	"strings"
)

// RecommendationTable holds ordered remediation steps per element. Most elements
// have no authored steps; that is expected and not an error.
type RecommendationTable struct {
	reg   *Registry
	steps map[string][]string
}

// NewRecommendationTable validates that every referenced element exists.
func NewRecommendationTable(reg *Registry, steps map[string][]string) (*RecommendationTable, error) {
	var errs ValidationErrors

	ids := make([]string, 0, len(steps))
	for id := range steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := &RecommendationTable{reg: reg, steps: make(map[string][]string, len(steps))}
	for _, id := range ids {
		if !reg.Has(id) {
			errs.add("", "recommendations."+id, "%v %q", ErrUnknownElement, id)
			continue
		}
		list := make([]string, 0, len(steps[id]))
		for i, step := range steps[id] {
			step = strings.TrimSpace(step)
			if step == "" {
				errs.add("", fmt.Sprintf("recommendations.%s[%d]", id, i), "steps cannot be empty")
				continue
			}
			list = append(list, step)
		}
		t.steps[id] = list
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return t, nil
}

// Lookup returns the steps for an element. A known element without steps yields
// an empty slice and a nil error; an element outside the taxonomy yields
// ErrUnknownElement.
func (t *RecommendationTable) Lookup(elementID string) ([]string, error) {
	if t == nil {
		return []string{}, nil
	}
	if !t.reg.Has(elementID) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownElement, elementID)
	}
	return append([]string{}, t.steps[elementID]...), nil
}
