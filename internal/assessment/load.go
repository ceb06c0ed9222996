package assessment

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"orgmaturity/internal/framework"
)

type rawAssessment struct {
	Name        string         `yaml:"name"`
	TargetLevel *int           `yaml:"target_level"`
	Scores      map[string]int `yaml:"scores"`
}

// LoadFile reads an assessment YAML file and applies it to a fresh state.
func LoadFile(path string, reg *framework.Registry) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assessment: %w", err)
	}
	return Parse(data, path, reg)
}

// Parse applies an assessment document to a fresh state. Every entry goes
// through SetScore/SetTargetLevel; all rejected entries are reported together.
func Parse(data []byte, source string, reg *framework.Registry) (*State, error) {
	var raw rawAssessment
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, framework.ValidationErrors{{
			File:    source,
			Field:   "yaml",
			Message: err.Error(),
		}}
	}

	var errs framework.ValidationErrors
	state := NewState(reg)
	state.Name = strings.TrimSpace(raw.Name)

	if raw.TargetLevel != nil {
		if err := state.SetTargetLevel(framework.Level(*raw.TargetLevel)); err != nil {
			errs = append(errs, framework.ValidationError{
				File:    source,
				Field:   "target_level",
				Message: err.Error(),
			})
		}
	}

	ids := make([]string, 0, len(raw.Scores))
	for id := range raw.Scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := state.SetScore(id, framework.Level(raw.Scores[id])); err != nil {
			errs = append(errs, framework.ValidationError{
				File:    source,
				Field:   "scores." + id,
				Message: err.Error(),
			})
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return state, nil
}

// ParseOverride parses an "element=level" pair as passed on the command line.
func ParseOverride(value string) (string, framework.Level, error) {
	id, levelStr, ok := strings.Cut(value, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", 0, fmt.Errorf("score override %q must look like element=level", value)
	}
	level, err := strconv.Atoi(strings.TrimSpace(levelStr))
	if err != nil {
		return "", 0, fmt.Errorf("score override %q: parse level: %w", value, err)
	}
	return id, framework.Level(level), nil
}
