package assessment

import (
	"orgmaturity/internal/framework"
)

// DefaultTargetLevel is the target a fresh assessment starts with.
const DefaultTargetLevel = framework.MaxLevel

// State is the mutable input of one assessment: raw scores plus the target
// level. It is owned by a single caller; it does no locking of its own.
type State struct {
	Name   string
	scores *Scores
	target framework.Level
}

// NewState returns a state with default scores and DefaultTargetLevel.
func NewState(reg *framework.Registry) *State {
	return &State{
		scores: NewScores(reg),
		target: DefaultTargetLevel,
	}
}

// SetScore sets the raw level of one element.
func (s *State) SetScore(elementID string, level framework.Level) error {
	return s.scores.Set(elementID, level)
}

// SetTargetLevel replaces the target level.
func (s *State) SetTargetLevel(level framework.Level) error {
	if err := framework.CheckLevel(level); err != nil {
		return &InputError{Level: level, Err: err}
	}
	s.target = level
	return nil
}

// Target returns the selected target level.
func (s *State) Target() framework.Level { return s.target }

// Scores exposes the score store for read access.
func (s *State) Scores() *Scores { return s.scores }

// Reset restores default scores and target.
func (s *State) Reset() {
	s.scores.Reset()
	s.target = DefaultTargetLevel
}
