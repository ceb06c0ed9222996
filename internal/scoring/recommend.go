package scoring

import (
	"fmt"
)

// DefaultTopN is how many gaps receive remediation steps by default.
const DefaultTopN = 3

// StepSource looks up remediation steps for an element.
type StepSource interface {
	Lookup(elementID string) ([]string, error)
}

// Recommendation pairs a top gap with its authored steps. HasSteps is false
// when nothing has been authored for the element yet.
type Recommendation struct {
	ElementID   string   `json:"element_id"`
	ElementName string   `json:"element_name"`
	GapSize     int      `json:"gap_size"`
	Steps       []string `json:"steps"`
	HasSteps    bool     `json:"has_steps"`
}

// Recommend selects the first n gaps (already ranked) and attaches their steps.
func Recommend(gaps []GapRecord, steps StepSource, n int) ([]Recommendation, error) {
	if n < 0 {
		return nil, fmt.Errorf("recommendation count must be non-negative, got %d", n)
	}
	if n > len(gaps) {
		n = len(gaps)
	}

	out := make([]Recommendation, 0, n)
	for _, gap := range gaps[:n] {
		var list []string
		if steps != nil {
			var err error
			list, err = steps.Lookup(gap.ElementID)
			if err != nil {
				return nil, fmt.Errorf("steps for %q: %w", gap.ElementID, err)
			}
		}
		if list == nil {
			list = []string{}
		}
		out = append(out, Recommendation{
			ElementID:   gap.ElementID,
			ElementName: gap.Name,
			GapSize:     gap.Gap,
			Steps:       list,
			HasSteps:    len(list) > 0,
		})
	}
	return out, nil
}
