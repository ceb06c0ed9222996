package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"orgmaturity/internal/assessment"
	"orgmaturity/internal/framework"
)

// Analysis bundles every derived output of one assessment state.
type Analysis struct {
	Result          *Result          `json:"result"`
	Gaps            []GapRecord      `json:"gaps"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Analyze runs the engine, gap analyzer and recommendation selector.
func Analyze(fw *framework.Framework, state *assessment.State, topN int) (*Analysis, error) {
	if fw == nil {
		return nil, fmt.Errorf("framework is required")
	}
	if state == nil {
		return nil, fmt.Errorf("assessment state is required")
	}

	res, err := Compute(fw.Registry, fw.Weights, state.Scores(), state.Target())
	if err != nil {
		return nil, fmt.Errorf("compute scores: %w", err)
	}
	gaps, err := Gaps(fw.Registry, state.Scores(), state.Target())
	if err != nil {
		return nil, fmt.Errorf("analyze gaps: %w", err)
	}
	if gaps == nil {
		gaps = []GapRecord{}
	}
	recs, err := Recommend(gaps, fw.Recommendations, topN)
	if err != nil {
		return nil, fmt.Errorf("select recommendations: %w", err)
	}
	return &Analysis{Result: res, Gaps: gaps, Recommendations: recs}, nil
}

// Fingerprint identifies an (assessment state, top-N) input. Equal inputs
// yield equal fingerprints.
func Fingerprint(state *assessment.State, topN int) string {
	h := sha256.New()
	fmt.Fprintf(h, "target=%d;top=%d;", state.Target(), topN)
	for _, entry := range state.Scores().Snapshot() {
		fmt.Fprintf(h, "%s=%d;", entry.ElementID, entry.Level)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Memo caches the most recent Analysis keyed by Fingerprint. It is not safe
// for concurrent use; the owner serializes calls. Returned analyses are shared
// and must be treated as read-only.
type Memo struct {
	fw   *framework.Framework
	key  string
	last *Analysis

	Hits   int
	Misses int
}

// NewMemo returns an empty cache bound to a framework.
func NewMemo(fw *framework.Framework) *Memo {
	return &Memo{fw: fw}
}

// Analyze returns the cached analysis when the inputs are unchanged and
// recomputes otherwise. cached reports which path was taken.
func (m *Memo) Analyze(state *assessment.State, topN int) (analysis *Analysis, cached bool, err error) {
	key := Fingerprint(state, topN)
	if m.last != nil && key == m.key {
		m.Hits++
		return m.last, true, nil
	}
	analysis, err = Analyze(m.fw, state, topN)
	if err != nil {
		return nil, false, err
	}
	m.Misses++
	m.key = key
	m.last = analysis
	return analysis, false, nil
}

// Invalidate drops the cached analysis.
func (m *Memo) Invalidate() {
	m.key = ""
	m.last = nil
}
