package assessment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"orgmaturity/internal/framework"
)

func testRegistry(t *testing.T) *framework.Registry {
	t.Helper()
	reg, err := framework.NewRegistry([]framework.Domain{{
		ID: "d", Name: "D",
		Components: []framework.Component{{ID: "c", Name: "C", Elements: []framework.Element{
			{ID: "a", Name: "A"},
			{ID: "b", Name: "B"},
			{ID: "c", Name: "C"},
		}}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestNewScoresDefaultsEveryElement(t *testing.T) {
	s := NewScores(testRegistry(t))
	want := []ElementLevel{{"a", 1}, {"b", 1}, {"c", 1}}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if _, ok := s.Get("zzz"); ok {
		t.Fatalf("unknown element reported as present")
	}
}

func TestSetScoreReplacesOnlyTarget(t *testing.T) {
	s := NewScores(testRegistry(t))
	if err := s.Set("b", 4); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("b", 4); err != nil {
		t.Fatal(err)
	}
	want := []ElementLevel{{"a", 1}, {"b", 4}, {"c", 1}}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSetScoreRejectsInvalidInput(t *testing.T) {
	s := NewScores(testRegistry(t))
	before := s.Snapshot()

	tests := []struct {
		name    string
		id      string
		level   framework.Level
		wantErr error
	}{
		{"unknown element", "zzz", 3, framework.ErrUnknownElement},
		{"level zero", "a", 0, framework.ErrLevelOutOfRange},
		{"level six", "a", 6, framework.ErrLevelOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Set(tt.id, tt.level)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !IsInputError(err) {
				t.Fatalf("expected InputError, got %T", err)
			}
		})
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Fatalf("store mutated by rejected input (-want +got):\n%s", diff)
	}
}

func TestStateTargetLevel(t *testing.T) {
	st := NewState(testRegistry(t))
	if got := st.Target(); got != DefaultTargetLevel {
		t.Fatalf("default target = %d, want %d", got, DefaultTargetLevel)
	}
	if err := st.SetTargetLevel(3); err != nil {
		t.Fatal(err)
	}
	if err := st.SetTargetLevel(9); !errors.Is(err, framework.ErrLevelOutOfRange) {
		t.Fatalf("err = %v, want ErrLevelOutOfRange", err)
	}
	if got := st.Target(); got != 3 {
		t.Fatalf("target = %d after rejected change, want 3", got)
	}

	_ = st.SetScore("a", 5)
	st.Reset()
	if got, _ := st.Scores().Get("a"); got != DefaultLevel {
		t.Fatalf("score after reset = %d, want %d", got, DefaultLevel)
	}
	if st.Target() != DefaultTargetLevel {
		t.Fatalf("target after reset = %d", st.Target())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.yml")
	yml := `
name: Baseline
target_level: 4
scores:
  a: 2
  c: 4
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := LoadFile(path, testRegistry(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Name != "Baseline" || st.Target() != 4 {
		t.Fatalf("unexpected state: name=%q target=%d", st.Name, st.Target())
	}
	want := []ElementLevel{{"a", 2}, {"b", 1}, {"c", 4}}
	if diff := cmp.Diff(want, st.Scores().Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCollectsAllErrors(t *testing.T) {
	yml := `
target_level: 7
scores:
  a: 0
  ghost: 3
`
	_, err := Parse([]byte(yml), "bad.yml", testRegistry(t))
	ves, ok := err.(framework.ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T (%v)", err, err)
	}
	fields := make([]string, 0, len(ves))
	for _, ve := range ves {
		fields = append(fields, ve.Field)
	}
	if diff := cmp.Diff([]string{"target_level", "scores.a", "scores.ghost"}, fields); diff != "" {
		t.Fatalf("error fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOverride(t *testing.T) {
	id, level, err := ParseOverride(" vm = 3 ")
	if err != nil || id != "vm" || level != 3 {
		t.Fatalf("ParseOverride = %q, %d, %v", id, level, err)
	}
	for _, bad := range []string{"vm", "=3", "vm=x"} {
		if _, _, err := ParseOverride(bad); err == nil {
			t.Fatalf("ParseOverride(%q) expected error", bad)
		}
	}
}
