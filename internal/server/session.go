package server

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"orgmaturity/internal/assessment"
	"orgmaturity/internal/framework"
	"orgmaturity/internal/scoring"
)

// Session is the single in-memory assessment served over HTTP. Mutations and
// reads are serialized; a read never observes a half-applied mutation.
type Session struct {
	mu     sync.Mutex
	fw     *framework.Framework
	state  *assessment.State
	memo   *scoring.Memo
	logger *zap.Logger
}

// NewSession wraps state. A nil state starts from defaults.
func NewSession(fw *framework.Framework, state *assessment.State, logger *zap.Logger) (*Session, error) {
	if fw == nil {
		return nil, fmt.Errorf("framework is required")
	}
	if state == nil {
		state = assessment.NewState(fw.Registry)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		fw:     fw,
		state:  state,
		memo:   scoring.NewMemo(fw),
		logger: logger,
	}, nil
}

// Framework returns the immutable framework the session scores against.
func (s *Session) Framework() *framework.Framework {
	return s.fw
}

// SetScore updates one element's raw level.
func (s *Session) SetScore(elementID string, level framework.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.SetScore(elementID, level); err != nil {
		return err
	}
	s.logger.Debug("score updated", zap.String("element", elementID), zap.Int("level", int(level)))
	return nil
}

// SetTarget updates the target level.
func (s *Session) SetTarget(level framework.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.SetTargetLevel(level); err != nil {
		return err
	}
	s.logger.Debug("target updated", zap.Int("level", int(level)))
	return nil
}

// Reset restores default scores and target.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Reset()
	s.memo.Invalidate()
	s.logger.Debug("session reset")
}

// Snapshot returns the current target and scores.
func (s *Session) Snapshot() (framework.Level, []assessment.ElementLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Target(), s.state.Scores().Snapshot()
}

// analyzeLocked runs fn with the state and its analysis under the session lock.
func (s *Session) analyzeLocked(topN int, fn func(*assessment.State, *scoring.Analysis) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	analysis, cached, err := s.memo.Analyze(s.state, topN)
	if err != nil {
		return err
	}
	s.logger.Debug("analysis", zap.Bool("cached", cached), zap.Int("top", topN))
	return fn(s.state, analysis)
}

// Replace swaps in a freshly loaded state, for example after the assessment
// file it came from changed on disk.
func (s *Session) Replace(state *assessment.State) error {
	if state == nil {
		return fmt.Errorf("assessment state is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.memo.Invalidate()
	s.logger.Info("assessment replaced", zap.String("name", state.Name))
	return nil
}
