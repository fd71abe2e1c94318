package agent

import (
	"fmt"
	"testing"

	"github.com/quietroomlabs/haven/pkg/therapy"
)

func TestNewSessionDefaults(t *testing.T) {
	session := NewSession("alice", therapy.ModeHumanistic)
	if session.UserID != "alice" {
		t.Fatalf("UserID = %q", session.UserID)
	}
	if session.ActiveMode != therapy.ModeHumanistic {
		t.Fatalf("ActiveMode = %q", session.ActiveMode)
	}
	if session.TurnCount != 0 {
		t.Fatalf("TurnCount = %d, want 0", session.TurnCount)
	}
	if session.ID == "" {
		t.Fatal("session id not assigned")
	}
	if len(session.ModeHistory) != 1 || session.ModeHistory[0].Mode != therapy.ModeHumanistic {
		t.Fatalf("ModeHistory = %+v, want the initial mode seeded", session.ModeHistory)
	}
}

func TestSwitchMode(t *testing.T) {
	session := NewSession("alice", therapy.ModeHumanistic)

	session.SwitchMode(therapy.ModeCBT)
	if session.ActiveMode != therapy.ModeCBT {
		t.Fatalf("ActiveMode = %q, want cbt", session.ActiveMode)
	}
	if len(session.ModeHistory) != 2 {
		t.Fatalf("ModeHistory has %d entries, want 2", len(session.ModeHistory))
	}

	// Same-mode and invalid targets are no-ops.
	session.SwitchMode(therapy.ModeCBT)
	session.SwitchMode(therapy.Mode("gestalt"))
	if session.ActiveMode != therapy.ModeCBT {
		t.Fatalf("ActiveMode = %q after no-op switches", session.ActiveMode)
	}
	if len(session.ModeHistory) != 2 {
		t.Fatalf("ModeHistory grew on no-op switches: %+v", session.ModeHistory)
	}
}

func TestModeHistoryMonotonic(t *testing.T) {
	session := NewSession("alice", therapy.ModeCBT)
	session.RecordTurn(therapy.Turn{Mode: therapy.ModeCBT})
	session.SwitchMode(therapy.ModeHumanistic)
	session.RecordTurn(therapy.Turn{Mode: therapy.ModeHumanistic})
	session.RecordTurn(therapy.Turn{Mode: therapy.ModeHumanistic})
	session.SwitchMode(therapy.ModePsychoanalytic)

	last := -1
	for _, change := range session.ModeHistory {
		if change.TurnIndex < last {
			t.Fatalf("ModeHistory not monotonic: %+v", session.ModeHistory)
		}
		last = change.TurnIndex
	}
}

func TestRecordTurnWindow(t *testing.T) {
	session := NewSession("alice", therapy.ModeCBT)
	for i := 0; i < contextWindow+5; i++ {
		session.RecordTurn(therapy.Turn{UserMessage: fmt.Sprintf("msg %d", i), Mode: therapy.ModeCBT})
	}
	if session.TurnCount != contextWindow+5 {
		t.Fatalf("TurnCount = %d, want %d", session.TurnCount, contextWindow+5)
	}
	recent := session.Recent()
	if len(recent) != contextWindow {
		t.Fatalf("window holds %d turns, want %d", len(recent), contextWindow)
	}
	if recent[0].UserMessage != "msg 5" {
		t.Fatalf("oldest retained turn is %q, want msg 5", recent[0].UserMessage)
	}
}

func TestRecordTurnExcludesCrisisFromWindow(t *testing.T) {
	session := NewSession("alice", therapy.ModeCBT)
	session.RecordTurn(therapy.Turn{UserMessage: "normal", Mode: therapy.ModeCBT})
	session.RecordTurn(therapy.Turn{UserMessage: "crisis", CrisisDetected: true, Mode: therapy.ModeCBT})

	if session.TurnCount != 2 {
		t.Fatalf("TurnCount = %d, want 2 (crisis turns still count)", session.TurnCount)
	}
	recent := session.Recent()
	if len(recent) != 1 || recent[0].UserMessage != "normal" {
		t.Fatalf("crisis turn leaked into the context window: %+v", recent)
	}
}
