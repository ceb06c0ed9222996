package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"orgmaturity/internal/assessment"
	"orgmaturity/internal/framework"
	"orgmaturity/internal/scoring"
)

// SchemaVersion is the version of the persisted report layout. LoadJSON
// rejects any other value.
const SchemaVersion = 1

// GapItem is a gap enriched with the level descriptions a reader needs to act on it.
type GapItem struct {
	scoring.GapRecord
	CurrentDescription string `json:"current_description,omitempty"`
	TargetDescription  string `json:"target_description,omitempty"`
}

// Report is the persisted form of one analysis.
type Report struct {
	SchemaVersion   int                       `json:"schema_version"`
	ID              string                    `json:"id"`
	GeneratedAt     string                    `json:"generated_at"`
	FrameworkSource string                    `json:"framework_source"`
	AssessmentName  string                    `json:"assessment_name,omitempty"`
	TargetLevel     framework.Level           `json:"target_level"`
	TargetName      string                    `json:"target_name"`
	TopN            int                       `json:"top_n"`
	Overall         scoring.Overall           `json:"overall"`
	Domains         []scoring.DomainScore     `json:"domains"`
	Components      []scoring.ComponentScore  `json:"components"`
	Scores          []assessment.ElementLevel `json:"scores"`
	Gaps            []GapItem                 `json:"gaps"`
	Recommendations []scoring.Recommendation  `json:"recommendations"`
}

// Build assembles a report from an analysis of state.
func Build(fw *framework.Framework, state *assessment.State, analysis *scoring.Analysis, topN int, now time.Time) (*Report, error) {
	if fw == nil || state == nil || analysis == nil || analysis.Result == nil {
		return nil, fmt.Errorf("framework, state and analysis are required")
	}

	gaps := make([]GapItem, 0, len(analysis.Gaps))
	for _, g := range analysis.Gaps {
		item := GapItem{GapRecord: g}
		item.CurrentDescription, _ = fw.Registry.Description(g.ElementID, g.Real)
		item.TargetDescription, _ = fw.Registry.Description(g.ElementID, g.Expected)
		gaps = append(gaps, item)
	}

	return &Report{
		SchemaVersion:   SchemaVersion,
		ID:              uuid.NewString(),
		GeneratedAt:     now.UTC().Format(time.RFC3339),
		FrameworkSource: fw.Source,
		AssessmentName:  state.Name,
		TargetLevel:     state.Target(),
		TargetName:      fw.LevelName(state.Target()),
		TopN:            topN,
		Overall:         analysis.Result.Overall,
		Domains:         analysis.Result.Domains,
		Components:      analysis.Result.Components,
		Scores:          state.Scores().Snapshot(),
		Gaps:            gaps,
		Recommendations: analysis.Recommendations,
	}, nil
}

// WriteJSON writes the report atomically.
func WriteJSON(path string, r *Report) error {
	if path == "" {
		return fmt.Errorf("report path is required")
	}
	if r == nil {
		return fmt.Errorf("report is required")
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	return writeAtomic(path, data)
}

// WriteText writes the rendered text form atomically.
func WriteText(path string, r *Report) error {
	if path == "" {
		return fmt.Errorf("report path is required")
	}
	return writeAtomic(path, []byte(RenderText(r)))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// LoadJSON reads a report written by WriteJSON.
func LoadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if r.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported report schema_version %d", r.SchemaVersion)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("report missing id")
	}
	return &r, nil
}

// savedLayout is fixed width so saved report names sort chronologically.
const savedLayout = "20060102T150405.000000000Z"

var savedName = regexp.MustCompile(`^\d{8}T\d{6}\.\d{9}Z-[0-9a-f]{8}\.json$`)

// PathFor returns where --save writes a report generated at the given time.
// The ID prefix keeps reports generated in the same instant apart.
func PathFor(dir string, at time.Time, id string) string {
	suffix := strings.ReplaceAll(strings.ToLower(id), "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	for len(suffix) < 8 {
		suffix += "0"
	}
	return filepath.Join(dir, at.UTC().Format(savedLayout)+"-"+suffix+".json")
}

// History lists the reports saved in dir, oldest first. Other files,
// including reports written with an explicit path, are ignored.
func History(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reports dir: %w", err)
	}
	var paths []string
	for _, ent := range entries {
		if ent.IsDir() || !savedName.MatchString(ent.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, ent.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LatestPath returns the most recently saved report in dir.
func LatestPath(dir string) (string, error) {
	paths, err := History(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no saved reports in %s", dir)
	}
	return paths[len(paths)-1], nil
}
