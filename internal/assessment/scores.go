package assessment

import (
	"errors"
	"fmt"

	"orgmaturity/internal/framework"
)

// DefaultLevel is the raw score every element starts at.
const DefaultLevel = framework.MinLevel

// InputError reports a rejected mutation. The store is left unchanged.
type InputError struct {
	ElementID string
	Level     framework.Level
	Err       error
}

func (e *InputError) Error() string {
	if e.ElementID == "" {
		return fmt.Sprintf("invalid target level %d: %v", e.Level, e.Err)
	}
	return fmt.Sprintf("invalid score %s=%d: %v", e.ElementID, e.Level, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err was caused by rejected user input.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Scores maps every element of a registry to its raw maturity level.
type Scores struct {
	reg    *framework.Registry
	levels map[string]framework.Level
}

// NewScores returns a store holding DefaultLevel for every element.
func NewScores(reg *framework.Registry) *Scores {
	s := &Scores{
		reg:    reg,
		levels: make(map[string]framework.Level, reg.Len()),
	}
	for _, el := range reg.Elements() {
		s.levels[el.ID] = DefaultLevel
	}
	return s
}

// Get returns the raw level of an element. ok is false for ids outside the taxonomy.
func (s *Scores) Get(elementID string) (framework.Level, bool) {
	level, ok := s.levels[elementID]
	return level, ok
}

// Set replaces the level of a single element.
func (s *Scores) Set(elementID string, level framework.Level) error {
	if _, ok := s.levels[elementID]; !ok {
		return &InputError{ElementID: elementID, Level: level, Err: framework.ErrUnknownElement}
	}
	if err := framework.CheckLevel(level); err != nil {
		return &InputError{ElementID: elementID, Level: level, Err: err}
	}
	s.levels[elementID] = level
	return nil
}

// Reset returns every element to DefaultLevel.
func (s *Scores) Reset() {
	for id := range s.levels {
		s.levels[id] = DefaultLevel
	}
}

// Snapshot returns the levels in flattened taxonomy order.
func (s *Scores) Snapshot() []ElementLevel {
	out := make([]ElementLevel, 0, len(s.levels))
	for _, el := range s.reg.Elements() {
		out = append(out, ElementLevel{ElementID: el.ID, Level: s.levels[el.ID]})
	}
	return out
}

// ElementLevel is one entry of a Snapshot.
type ElementLevel struct {
	ElementID string          `json:"element_id" yaml:"element_id"`
	Level     framework.Level `json:"level" yaml:"level"`
}
