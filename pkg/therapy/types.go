package therapy

import (
	"fmt"
	"strings"
	"time"
)

// Mode identifies one of the three specialist personas. The set is closed:
// every stored turn and every routing decision carries exactly one of these.
type Mode string

const (
	ModeCBT            Mode = "cbt"
	ModeHumanistic     Mode = "humanistic"
	ModePsychoanalytic Mode = "psychoanalytic"
)

// Modes lists all valid modes in the fixed evaluation order used by the
// keyword router. The order is load-bearing: ties between candidates are
// broken by position in this slice.
func Modes() []Mode {
	return []Mode{ModeCBT, ModeHumanistic, ModePsychoanalytic}
}

// ParseMode normalizes a mode label. It accepts any casing and surrounding
// whitespace; anything outside the closed set is an error.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCBT:
		return ModeCBT, nil
	case ModeHumanistic:
		return ModeHumanistic, nil
	case ModePsychoanalytic:
		return ModePsychoanalytic, nil
	}
	return "", fmt.Errorf("unknown therapy mode %q", s)
}

func (m Mode) Valid() bool {
	_, err := ParseMode(string(m))
	return err == nil
}

// Display returns the label shown to users, e.g. "CBT Specialist".
func (m Mode) Display() string {
	switch m {
	case ModeCBT:
		return "CBT Specialist"
	case ModeHumanistic:
		return "Humanistic Specialist"
	case ModePsychoanalytic:
		return "Psychoanalytic Specialist"
	}
	return strings.ToUpper(string(m))
}

// Turn is one user-message/agent-response exchange, the atomic unit of
// logging. Turns are immutable once appended to the store.
type Turn struct {
	ID             string
	Timestamp      time.Time
	UserID         string
	SessionID      string
	UserMessage    string
	AgentResponse  string
	Tags           []string
	CrisisDetected bool
	Mode           Mode
	// RedirectedFrom is set when this turn switched the active mode,
	// recording the mode that was abandoned. Empty otherwise.
	RedirectedFrom Mode
	// System marks synthetic turns written by the runtime itself
	// (mode-change notices), as opposed to user exchanges.
	System bool
}

// HasTag reports whether the turn carries the given tag.
func (t Turn) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// CrisisResult is the outcome of running the crisis detector over a single
// message. It is derived per message and never stored as its own entity.
type CrisisResult struct {
	IsCrisis        bool
	MatchedKeywords []string
	Severity        Severity
}

type Severity string

const (
	SeverityLow  Severity = "low"
	SeverityHigh Severity = "high"
)

// RedirectionDecision is produced by a routing policy and consumed
// immediately by the turn pipeline.
type RedirectionDecision struct {
	ShouldRedirect bool
	TargetMode     Mode
	Reason         string
	// Confidence is matched-keyword-count / total-keywords-in-category.
	// The formula is preserved from the original routing heuristic and is
	// not a calibrated probability.
	Confidence float64
}
