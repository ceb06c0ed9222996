package framework

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultFramework(t *testing.T) {
	fw, err := Default()
	if err != nil {
		t.Fatalf("load default framework: %v", err)
	}
	if got, want := len(fw.Registry.Domains()), 3; got != want {
		t.Fatalf("domains = %d, want %d", got, want)
	}
	if got, want := fw.Registry.Len(), 33; got != want {
		t.Fatalf("elements = %d, want %d", got, want)
	}

	elems := fw.Registry.Elements()
	if elems[0].ID != "vm" || elems[len(elems)-1].ID != "sc" {
		t.Fatalf("unexpected flattened order: first=%s last=%s", elems[0].ID, elems[len(elems)-1].ID)
	}

	for _, tc := range []struct {
		level Level
		want  float64
	}{
		{1, 0.10}, {2, 0.15}, {3, 0.20}, {4, 0.25}, {5, 0.30},
	} {
		w, err := fw.Weights.WeightOf(tc.level, "gd")
		if err != nil {
			t.Fatalf("weight(%d, gd): %v", tc.level, err)
		}
		if diff := w - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("weight(%d, gd) = %v, want %v", tc.level, w, tc.want)
		}
	}

	if got := fw.LevelName(5); !strings.HasPrefix(got, "Nivel 5") {
		t.Fatalf("level 5 name = %q", got)
	}
	if desc, ok := fw.Registry.Description("sc", 3); !ok || desc == "" {
		t.Fatalf("expected description for sc level 3")
	}

	steps, err := fw.Recommendations.Lookup("vm")
	if err != nil || len(steps) != 4 {
		t.Fatalf("vm steps = %v (err %v), want 4 steps", steps, err)
	}
	steps, err = fw.Recommendations.Lookup("gd")
	if err != nil {
		t.Fatalf("gd lookup: %v", err)
	}
	if steps == nil || len(steps) != 0 {
		t.Fatalf("gd steps = %#v, want empty non-nil slice", steps)
	}
	if _, err := fw.Recommendations.Lookup("nope"); !errors.Is(err, ErrUnknownElement) {
		t.Fatalf("lookup unknown = %v, want ErrUnknownElement", err)
	}
}

func TestRegistryDomainsAreCopies(t *testing.T) {
	reg, err := NewRegistry([]Domain{{
		ID: "d", Name: "D",
		Components: []Component{{ID: "c", Name: "C", Elements: []Element{{ID: "a", Name: "A"}}}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	domains := reg.Domains()
	domains[0].Components[0].Elements[0].Name = "mutated"

	want := []Element{{ID: "a", Name: "A"}}
	if diff := cmp.Diff(want, reg.Domains()[0].Components[0].Elements); diff != "" {
		t.Fatalf("registry mutated through accessor (-want +got):\n%s", diff)
	}
}

func TestNewRegistryRejectsDuplicateElementAcrossDomains(t *testing.T) {
	_, err := NewRegistry([]Domain{
		{ID: "d1", Name: "One", Components: []Component{{ID: "c", Name: "C", Elements: []Element{{ID: "x", Name: "X"}}}}},
		{ID: "d2", Name: "Two", Components: []Component{{ID: "c", Name: "C", Elements: []Element{{ID: "x", Name: "X again"}}}}},
	})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	ves, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(ves) != 1 || !strings.Contains(ves[0].Message, `"x" already defined`) {
		t.Fatalf("unexpected errors: %v", ves)
	}
}

func TestEmptyRegistryIsValid(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("empty registry: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("len = %d, want 0", reg.Len())
	}
	if _, err := UniformWeights(reg, func(l Level) float64 { return 1 }); err != nil {
		t.Fatalf("weights for empty registry: %v", err)
	}
}

func TestWeightOfErrors(t *testing.T) {
	reg := twoElementRegistry(t)
	weights, err := UniformWeights(reg, func(l Level) float64 { return 0.05*float64(l) + 0.05 })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := weights.WeightOf(0, "a"); !errors.Is(err, ErrLevelOutOfRange) {
		t.Fatalf("level 0 err = %v, want ErrLevelOutOfRange", err)
	}
	if _, err := weights.WeightOf(6, "a"); !errors.Is(err, ErrLevelOutOfRange) {
		t.Fatalf("level 6 err = %v, want ErrLevelOutOfRange", err)
	}
	if _, err := weights.WeightOf(3, "zzz"); !errors.Is(err, ErrUnknownElement) {
		t.Fatalf("unknown element err = %v, want ErrUnknownElement", err)
	}
}

func TestWeightOverridesVaryPerElement(t *testing.T) {
	reg := twoElementRegistry(t)
	weights, err := NewWeightTable(reg,
		map[Level]float64{1: 1, 2: 1, 3: 1, 4: 1, 5: 1},
		map[string]map[Level]float64{"b": {5: 2.5}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if w, _ := weights.WeightOf(5, "a"); w != 1 {
		t.Fatalf("weight(5, a) = %v, want 1", w)
	}
	if w, _ := weights.WeightOf(5, "b"); w != 2.5 {
		t.Fatalf("weight(5, b) = %v, want 2.5", w)
	}
}

func TestWeightTableRequiresTotalCoverage(t *testing.T) {
	reg := twoElementRegistry(t)
	_, err := NewWeightTable(reg,
		map[Level]float64{1: 1, 2: 1, 3: 1, 4: 1},
		map[string]map[Level]float64{"a": {5: 1}},
	)
	if err == nil {
		t.Fatalf("expected missing weight error")
	}
	ves := err.(ValidationErrors)
	if len(ves) != 1 || !strings.Contains(ves[0].Message, `element "b" at level 5`) {
		t.Fatalf("unexpected errors: %v", ves)
	}
}

func TestWeightTableRejectsNonPositive(t *testing.T) {
	reg := twoElementRegistry(t)
	_, err := NewWeightTable(reg, map[Level]float64{1: 0, 2: 1, 3: 1, 4: 1, 5: -1}, nil)
	if err == nil {
		t.Fatalf("expected non-positive weight errors")
	}
	if got := len(err.(ValidationErrors)); got != 2 {
		t.Fatalf("errors = %d, want 2: %v", got, err)
	}
}

func TestParseRejectsUnknownReferences(t *testing.T) {
	yml := `
domains:
  - id: d
    name: D
    components:
      - id: c
        name: C
        elements:
          - id: a
            name: A
weights:
  default: {1: 0.1, 2: 0.15, 3: 0.2, 4: 0.25, 5: 0.3}
  overrides:
    ghost: {1: 0.5}
recommendations:
  phantom: ["step"]
`
	_, err := Parse([]byte(yml), "bad.yml")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	ves, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(ves) != 2 {
		t.Fatalf("errors = %d, want 2: %v", len(ves), ves)
	}
	for _, ve := range ves {
		if ve.File != "bad.yml" {
			t.Fatalf("error not attributed to file: %#v", ve)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "framework.yml")
	yml := `
levels:
  - level: 1
    name: Initial
domains:
  - id: d
    name: D
    components:
      - id: c
        name: C
        elements:
          - id: a
            name: A
            descriptions:
              1: "ad hoc"
weights:
  default: {1: 1, 2: 2, 3: 3, 4: 4, 5: 5}
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	fw, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fw.Source != path {
		t.Fatalf("source = %q, want %q", fw.Source, path)
	}
	if got, want := fw.LevelName(1), "Initial"; got != want {
		t.Fatalf("level 1 name = %q, want %q", got, want)
	}
	if got, want := fw.LevelName(2), "Level 2"; got != want {
		t.Fatalf("level 2 name = %q, want %q", got, want)
	}
	if desc, _ := fw.Registry.Description("a", 1); desc != "ad hoc" {
		t.Fatalf("description = %q", desc)
	}
}

func twoElementRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Domain{{
		ID: "d", Name: "D",
		Components: []Component{{ID: "c", Name: "C", Elements: []Element{
			{ID: "a", Name: "A"},
			{ID: "b", Name: "B"},
		}}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}
