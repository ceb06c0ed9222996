package framework

import (
	"errors"
	"fmt"
)

// Level is a maturity level on the 1..5 scale. It is used both as the
// organization-wide target and as the raw score of a single element.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 5
)

var (
	// ErrUnknownElement reports an element id that is not part of the taxonomy.
	ErrUnknownElement = errors.New("unknown element")
	// ErrLevelOutOfRange reports a level outside MinLevel..MaxLevel.
	ErrLevelOutOfRange = errors.New("level out of range")
)

// Valid reports whether l lies within MinLevel..MaxLevel.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// CheckLevel returns ErrLevelOutOfRange (wrapped with the value) for invalid levels.
func CheckLevel(l Level) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %d (expected %d..%d)", ErrLevelOutOfRange, l, MinLevel, MaxLevel)
	}
	return nil
}

// AllLevels returns MinLevel..MaxLevel in ascending order.
func AllLevels() []Level {
	out := make([]Level, 0, MaxLevel-MinLevel+1)
	for l := MinLevel; l <= MaxLevel; l++ {
		out = append(out, l)
	}
	return out
}

// LevelInfo names a maturity level.
type LevelInfo struct {
	Level Level
	Name  string
}

// Element is a leaf of the taxonomy; the unit a user scores.
type Element struct {
	ID   string
	Name string
}

// Component groups elements within a domain.
type Component struct {
	ID       string
	Name     string
	Elements []Element
}

// Domain is a top-level taxonomy grouping.
type Domain struct {
	ID         string
	Name       string
	Components []Component
}

// ElementRecord locates an element inside the taxonomy.
type ElementRecord struct {
	Element       Element
	ComponentID   string
	ComponentName string
	DomainID      string
	DomainName    string
	// Position is the element's index in the flattened taxonomy.
	Position int
}
