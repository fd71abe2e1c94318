package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/quietroomlabs/haven/pkg/therapy"
)

// contextWindow caps the in-memory turn context carried per session. The
// durable log in the store is unbounded; this only bounds prompt history
// and routing context.
const contextWindow = 10

// ModeChange records one persona switch within a session.
type ModeChange struct {
	Mode      therapy.Mode
	TurnIndex int
}

// Session groups one user's live conversation state. It exists for the
// life of the process (or until restarted); durable turns outlive it in
// the store. Exactly one turn drives a session at a time: the HTTP
// gateway can deliver concurrent requests for one user, so the turn
// pipeline holds mu for the whole turn.
type Session struct {
	ID         string
	UserID     string
	ActiveMode therapy.Mode
	TurnCount  int
	// ModeHistory is appended on every mode change and is monotonic in
	// turn index.
	ModeHistory []ModeChange
	StartedAt   time.Time

	// mu serializes turn processing and state reads across goroutines.
	mu sync.Mutex

	// recent mirrors the last few turns for prompt history and the
	// anti-oscillation check, oldest first.
	recent []therapy.Turn
}

// NewSession starts a fresh session: new time-derived id, mode reset to
// the configured default, turn count zeroed.
func NewSession(userID string, defaultMode therapy.Mode) *Session {
	now := time.Now()
	return &Session{
		ID:          fmt.Sprintf("session_%s", now.Format("20060102_150405")),
		UserID:      userID,
		ActiveMode:  defaultMode,
		StartedAt:   now,
		ModeHistory: []ModeChange{{Mode: defaultMode, TurnIndex: 0}},
	}
}

// SwitchMode moves the session to target and records the change.
func (s *Session) SwitchMode(target therapy.Mode) {
	if target == s.ActiveMode || !target.Valid() {
		return
	}
	s.ActiveMode = target
	s.ModeHistory = append(s.ModeHistory, ModeChange{Mode: target, TurnIndex: s.TurnCount})
}

// RecordTurn bumps the turn count and folds the turn into the in-memory
// context window. Crisis turns count but stay out of the window: the
// safety exchange must not feed later prompts or routing decisions.
func (s *Session) RecordTurn(turn therapy.Turn) {
	s.TurnCount++
	if turn.CrisisDetected {
		return
	}
	s.recent = append(s.recent, turn)
	if len(s.recent) > contextWindow {
		s.recent = s.recent[len(s.recent)-contextWindow:]
	}
}

// Recent returns the in-memory context window, oldest first. Callers must
// not mutate the returned slice.
func (s *Session) Recent() []therapy.Turn {
	return s.recent
}
