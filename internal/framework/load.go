package framework

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSource names the embedded reference framework in errors and reports.
const DefaultSource = "builtin:framework.yml"

//go:embed defaults/framework.yml
var defaultFrameworkYAML []byte

// Framework bundles the immutable configuration the engine runs against.
type Framework struct {
	Source          string
	Registry        *Registry
	Weights         *WeightTable
	Recommendations *RecommendationTable

	levels []LevelInfo
}

type rawFramework struct {
	Levels          []rawLevel          `yaml:"levels"`
	Domains         []rawDomain         `yaml:"domains"`
	Weights         rawWeights          `yaml:"weights"`
	Recommendations map[string][]string `yaml:"recommendations"`
}

type rawLevel struct {
	Level int    `yaml:"level"`
	Name  string `yaml:"name"`
}

type rawDomain struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Components []rawComponent `yaml:"components"`
}

type rawComponent struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Elements []rawElement `yaml:"elements"`
}

type rawElement struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Descriptions map[int]string `yaml:"descriptions"`
}

type rawWeights struct {
	Default   map[int]float64            `yaml:"default"`
	Overrides map[string]map[int]float64 `yaml:"overrides"`
}

// Default returns the embedded reference framework.
func Default() (*Framework, error) {
	return Parse(defaultFrameworkYAML, DefaultSource)
}

// DefaultYAML returns a copy of the embedded reference framework document,
// suitable as a starting point for a workspace override.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultFrameworkYAML...)
}

// Load reads a framework from path, falling back to the embedded reference
// framework when path is empty.
func Load(path string) (*Framework, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read framework: %w", err)
	}
	return Parse(data, path)
}

// Parse unmarshals and validates a YAML framework document.
func Parse(data []byte, source string) (*Framework, error) {
	var raw rawFramework
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationErrors{{
			File:    source,
			Field:   "yaml",
			Message: err.Error(),
		}}
	}
	return build(raw, source)
}

func build(raw rawFramework, source string) (*Framework, error) {
	var errs ValidationErrors

	levels, levelErrs := buildLevels(raw.Levels)
	errs = append(errs, levelErrs...)

	domains := make([]Domain, 0, len(raw.Domains))
	descriptions := make(map[string]map[Level]string)
	for dIdx, rd := range raw.Domains {
		d := Domain{ID: rd.ID, Name: rd.Name}
		for cIdx, rc := range rd.Components {
			c := Component{ID: rc.ID, Name: rc.Name}
			for eIdx, re := range rc.Elements {
				c.Elements = append(c.Elements, Element{ID: re.ID, Name: re.Name})
				if len(re.Descriptions) == 0 {
					continue
				}
				byLevel := make(map[Level]string, len(re.Descriptions))
				for lvl, text := range re.Descriptions {
					if !Level(lvl).Valid() {
						errs.add("", fmt.Sprintf("domains[%d].components[%d].elements[%d].descriptions[%d]", dIdx, cIdx, eIdx, lvl),
							"level must be between %d and %d", MinLevel, MaxLevel)
						continue
					}
					byLevel[Level(lvl)] = strings.TrimSpace(text)
				}
				descriptions[strings.TrimSpace(re.ID)] = byLevel
			}
			d.Components = append(d.Components, c)
		}
		domains = append(domains, d)
	}

	reg, err := NewRegistry(domains)
	if err != nil {
		errs = append(errs, asValidationErrors(err)...)
		return nil, errs.withFile(source)
	}
	reg.descriptions = descriptions

	defaults := make(map[Level]float64, len(raw.Weights.Default))
	for lvl, w := range raw.Weights.Default {
		defaults[Level(lvl)] = w
	}
	overrides := make(map[string]map[Level]float64, len(raw.Weights.Overrides))
	for id, byLevel := range raw.Weights.Overrides {
		converted := make(map[Level]float64, len(byLevel))
		for lvl, w := range byLevel {
			converted[Level(lvl)] = w
		}
		overrides[id] = converted
	}
	weights, err := NewWeightTable(reg, defaults, overrides)
	if err != nil {
		errs = append(errs, asValidationErrors(err)...)
	}

	recs, err := NewRecommendationTable(reg, raw.Recommendations)
	if err != nil {
		errs = append(errs, asValidationErrors(err)...)
	}

	if len(errs) > 0 {
		return nil, errs.withFile(source)
	}

	return &Framework{
		Source:          source,
		Registry:        reg,
		Weights:         weights,
		Recommendations: recs,
		levels:          levels,
	}, nil
}

func buildLevels(raw []rawLevel) ([]LevelInfo, ValidationErrors) {
	var errs ValidationErrors
	names := make(map[Level]string)
	for i, rl := range raw {
		field := fmt.Sprintf("levels[%d]", i)
		lvl := Level(rl.Level)
		if !lvl.Valid() {
			errs.add("", field+".level", "level must be between %d and %d", MinLevel, MaxLevel)
			continue
		}
		if _, ok := names[lvl]; ok {
			errs.add("", field+".level", "duplicate level %d", lvl)
			continue
		}
		names[lvl] = strings.TrimSpace(rl.Name)
	}

	levels := make([]LevelInfo, 0, MaxLevel)
	for _, lvl := range AllLevels() {
		name := names[lvl]
		if name == "" {
			name = fmt.Sprintf("Level %d", lvl)
		}
		levels = append(levels, LevelInfo{Level: lvl, Name: name})
	}
	return levels, errs
}

func asValidationErrors(err error) ValidationErrors {
	if ve, ok := err.(ValidationErrors); ok {
		return ve
	}
	return ValidationErrors{{Message: err.Error()}}
}

// Levels returns the named maturity levels in ascending order.
func (f *Framework) Levels() []LevelInfo {
	return append([]LevelInfo(nil), f.levels...)
}

// LevelName returns the display name of a level.
func (f *Framework) LevelName(level Level) string {
	if f != nil && level.Valid() && int(level) <= len(f.levels) {
		return f.levels[level-1].Name
	}
	return fmt.Sprintf("Level %d", level)
}
