package scoring

import (
	"fmt"
	"sort"

	"orgmaturity/internal/framework"
)

// GapRecord is an element whose raw level falls short of the target.
type GapRecord struct {
	ElementID string          `json:"element_id"`
	Name      string          `json:"name"`
	Real      framework.Level `json:"real"`
	Expected  framework.Level `json:"expected"`
	Gap       int             `json:"gap"`
}

// Gaps lists every element with target - real > 0, largest gap first. Equal
// gaps keep their flattened taxonomy order.
func Gaps(reg *framework.Registry, scores ScoreReader, target framework.Level) ([]GapRecord, error) {
	if err := framework.CheckLevel(target); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	var gaps []GapRecord
	for _, el := range reg.Elements() {
		raw, ok := scores.Get(el.ID)
		if !ok {
			return nil, fmt.Errorf("score for %q: %w", el.ID, framework.ErrUnknownElement)
		}
		gap := int(target) - int(raw)
		if gap <= 0 {
			continue
		}
		gaps = append(gaps, GapRecord{
			ElementID: el.ID,
			Name:      el.Name,
			Real:      raw,
			Expected:  target,
			Gap:       gap,
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Gap > gaps[j].Gap
	})
	return gaps, nil
}
