package scoring

import (
	"fmt"
	"math"

	"orgmaturity/internal/framework"
)

// ScaleMax is the upper bound of the maturity scale, reported with component
// averages for charting.
const ScaleMax = framework.MaxLevel

// ScoreReader reads raw element levels.
type ScoreReader interface {
	Get(elementID string) (framework.Level, bool)
}

// WeightSource resolves the weight of an element at a target level.
type WeightSource interface {
	WeightOf(level framework.Level, elementID string) (float64, error)
}

// ElementScore is the contribution of one element.
type ElementScore struct {
	ElementID   string          `json:"element_id"`
	ElementName string          `json:"element_name"`
	DomainID    string          `json:"domain_id"`
	ComponentID string          `json:"component_id"`
	Real        framework.Level `json:"real"`
	Weight      float64         `json:"weight"`
	Achieved    float64         `json:"achieved"`
	Max         float64         `json:"max"`
}

// ComponentScore is the display-only average of raw levels in a component.
type ComponentScore struct {
	DomainID      string          `json:"domain_id"`
	DomainName    string          `json:"domain_name"`
	ComponentID   string          `json:"component_id"`
	ComponentName string          `json:"component_name"`
	RealAverage   float64         `json:"real_average"`
	Target        framework.Level `json:"target"`
	ScaleMax      framework.Level `json:"scale_max"`
}

// DomainScore sums element contributions within a domain.
type DomainScore struct {
	DomainID string  `json:"domain_id"`
	Name     string  `json:"name"`
	Achieved float64 `json:"achieved"`
	Max      float64 `json:"max"`
}

// Overall sums every domain.
type Overall struct {
	Achieved             float64 `json:"achieved"`
	Max                  float64 `json:"max"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// Result is the full aggregation for one (scores, target) pair.
type Result struct {
	Target     framework.Level  `json:"target"`
	Overall    Overall          `json:"overall"`
	Domains    []DomainScore    `json:"domains"`
	Components []ComponentScore `json:"components"`
	Elements   []ElementScore   `json:"elements"`
}

// Compute aggregates achieved and maximum scores for the target level.
//
// Per element: achieved = real * weight(target), max = target * weight(target).
// Domains and the overall total are plain sums. Component averages are the
// unweighted mean of raw levels and do not feed the totals. A zero maximum
// yields 0% completion.
func Compute(reg *framework.Registry, weights WeightSource, scores ScoreReader, target framework.Level) (*Result, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if weights == nil {
		return nil, fmt.Errorf("weight table is required")
	}
	if scores == nil {
		return nil, fmt.Errorf("scores are required")
	}
	if err := framework.CheckLevel(target); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	res := &Result{Target: target}
	for _, d := range reg.Domains() {
		ds := DomainScore{DomainID: d.ID, Name: d.Name}
		for _, c := range d.Components {
			var realSum float64
			for _, el := range c.Elements {
				raw, ok := scores.Get(el.ID)
				if !ok {
					return nil, fmt.Errorf("score for %q: %w", el.ID, framework.ErrUnknownElement)
				}
				w, err := weights.WeightOf(target, el.ID)
				if err != nil {
					return nil, fmt.Errorf("weight for %q: %w", el.ID, err)
				}
				es := ElementScore{
					ElementID:   el.ID,
					ElementName: el.Name,
					DomainID:    d.ID,
					ComponentID: c.ID,
					Real:        raw,
					Weight:      w,
					Achieved:    float64(raw) * w,
					Max:         float64(target) * w,
				}
				res.Elements = append(res.Elements, es)
				ds.Achieved += es.Achieved
				ds.Max += es.Max
				realSum += float64(raw)
			}

			var avg float64
			if n := len(c.Elements); n > 0 {
				avg = round2(realSum / float64(n))
			}
			res.Components = append(res.Components, ComponentScore{
				DomainID:      d.ID,
				DomainName:    d.Name,
				ComponentID:   c.ID,
				ComponentName: c.Name,
				RealAverage:   avg,
				Target:        target,
				ScaleMax:      ScaleMax,
			})
		}
		res.Domains = append(res.Domains, ds)
		res.Overall.Achieved += ds.Achieved
		res.Overall.Max += ds.Max
	}

	if res.Overall.Max > 0 {
		res.Overall.CompletionPercentage = res.Overall.Achieved / res.Overall.Max * 100
	}
	return res, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
