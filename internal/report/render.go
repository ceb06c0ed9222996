package report

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const noStepsMessage = "No evolution steps defined for this element."

// RenderText renders the human-readable report.
func RenderText(r *Report) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Report %s\n", r.ID)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt)
	b.WriteString(RenderBody(r))
	return b.String()
}

// RenderBody renders everything except the report identity, so two reports of
// the same inputs render identically.
func RenderBody(r *Report) string {
	if r == nil {
		return ""
	}
	var b strings.Builder

	fmt.Fprintf(&b, "Framework: %s\n", r.FrameworkSource)
	if r.AssessmentName != "" {
		fmt.Fprintf(&b, "Assessment: %s\n", r.AssessmentName)
	}
	fmt.Fprintf(&b, "Target level: %d (%s)\n", r.TargetLevel, r.TargetName)
	fmt.Fprintf(&b, "Overall: %.2f / %.2f (%.0f%%)\n", r.Overall.Achieved, r.Overall.Max, r.Overall.CompletionPercentage)

	b.WriteString("\nDomains:\n")
	for _, d := range r.Domains {
		fmt.Fprintf(&b, "  %s: %.2f / %.2f\n", d.Name, d.Achieved, d.Max)
	}

	b.WriteString("\nComponents:\n")
	for _, c := range r.Components {
		fmt.Fprintf(&b, "  %s / %s: %.2f (target %d of %d)\n", c.DomainName, c.ComponentName, c.RealAverage, c.Target, c.ScaleMax)
	}

	b.WriteString("\nGaps:\n")
	if len(r.Gaps) == 0 {
		b.WriteString("  none\n")
	}
	for _, g := range r.Gaps {
		fmt.Fprintf(&b, "  %s (%s): %d -> %d, gap %d\n", g.Name, g.ElementID, g.Real, g.Expected, g.Gap)
		if g.CurrentDescription != "" {
			fmt.Fprintf(&b, "    now: %s\n", g.CurrentDescription)
		}
		if g.TargetDescription != "" {
			fmt.Fprintf(&b, "    target: %s\n", g.TargetDescription)
		}
	}

	fmt.Fprintf(&b, "\nTop %d recommendations:\n", r.TopN)
	if len(r.Recommendations) == 0 {
		b.WriteString("  none\n")
	}
	for i, rec := range r.Recommendations {
		fmt.Fprintf(&b, "  %d. %s (gap %d)\n", i+1, rec.ElementName, rec.GapSize)
		if !rec.HasSteps {
			fmt.Fprintf(&b, "     %s\n", noStepsMessage)
			continue
		}
		for _, step := range rec.Steps {
			fmt.Fprintf(&b, "     - %s\n", step)
		}
	}
	return b.String()
}

// Diff returns a unified diff of two reports' bodies. It is empty when the
// reports describe the same outcome.
func Diff(from, to *Report, fromName, toName string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(RenderBody(from)),
		B:        difflib.SplitLines(RenderBody(to)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff reports: %w", err)
	}
	return text, nil
}
