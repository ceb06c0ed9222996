package framework

import (
	"fmt"
	"math"
	"sort"
)

// WeightTable maps (target level, element id) to a positive weight. Every
// element of the registry resolves to a weight at every level.
type WeightTable struct {
	weights map[string][MaxLevel]float64
}

// NewWeightTable resolves per-level defaults and per-element overrides against the
// registry. A (level, element) pair that resolves to no weight, or to a
// non-positive one, is a configuration error.
func NewWeightTable(reg *Registry, defaults map[Level]float64, overrides map[string]map[Level]float64) (*WeightTable, error) {
	var errs ValidationErrors

	for level, w := range defaults {
		if !level.Valid() {
			errs.add("", fmt.Sprintf("weights.default[%d]", level), "level must be between %d and %d", MinLevel, MaxLevel)
			continue
		}
		if !positive(w) {
			errs.add("", fmt.Sprintf("weights.default[%d]", level), "weight must be a positive number, got %v", w)
		}
	}

	overrideIDs := make([]string, 0, len(overrides))
	for id := range overrides {
		overrideIDs = append(overrideIDs, id)
	}
	sort.Strings(overrideIDs)
	for _, id := range overrideIDs {
		if !reg.Has(id) {
			errs.add("", "weights.overrides."+id, "%v %q", ErrUnknownElement, id)
			continue
		}
		for level, w := range overrides[id] {
			field := fmt.Sprintf("weights.overrides.%s[%d]", id, level)
			if !level.Valid() {
				errs.add("", field, "level must be between %d and %d", MinLevel, MaxLevel)
				continue
			}
			if !positive(w) {
				errs.add("", field, "weight must be a positive number, got %v", w)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	t := &WeightTable{weights: make(map[string][MaxLevel]float64, reg.Len())}
	for _, el := range reg.Elements() {
		var row [MaxLevel]float64
		for _, level := range AllLevels() {
			w, ok := overrides[el.ID][level]
			if !ok {
				w, ok = defaults[level]
			}
			if !ok {
				errs.add("", fmt.Sprintf("weights[%d].%s", level, el.ID), "no weight defined for element %q at level %d", el.ID, level)
				continue
			}
			row[level-1] = w
		}
		t.weights[el.ID] = row
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return t, nil
}

// UniformWeights builds a table where the weight depends on the level alone.
func UniformWeights(reg *Registry, weightFor func(Level) float64) (*WeightTable, error) {
	defaults := make(map[Level]float64)
	for _, level := range AllLevels() {
		defaults[level] = weightFor(level)
	}
	return NewWeightTable(reg, defaults, nil)
}

// WeightOf returns the weight of an element at a target level. Unknown ids and
// invalid levels are errors, never zero.
func (t *WeightTable) WeightOf(level Level, elementID string) (float64, error) {
	if err := CheckLevel(level); err != nil {
		return 0, err
	}
	if t == nil {
		return 0, fmt.Errorf("weight table is nil")
	}
	row, ok := t.weights[elementID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownElement, elementID)
	}
	return row[level-1], nil
}

func positive(w float64) bool {
	return w > 0 && !math.IsNaN(w) && !math.IsInf(w, 0)
}
