package router

import (
	"context"
	"strings"
	"testing"

	"github.com/quietroomlabs/haven/pkg/config"
	"github.com/quietroomlabs/haven/pkg/therapy"
)

func builtinKeywords(t *testing.T) map[therapy.Mode][]string {
	t.Helper()
	table := config.DefaultKeywordTable()
	out := make(map[therapy.Mode][]string)
	for _, mode := range therapy.Modes() {
		out[mode] = table.ModeKeywords(mode)
	}
	return out
}

func TestKeywordPolicy_RedirectsOnKeywordHit(t *testing.T) {
	policy := NewKeywordPolicy(builtinKeywords(t))

	decision, err := policy.Decide(context.Background(), therapy.ModeCBT,
		"I keep having the same relationship pattern since childhood", nil, 3)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decision.ShouldRedirect {
		t.Fatal("expected a redirection")
	}
	if decision.TargetMode != therapy.ModePsychoanalytic {
		t.Fatalf("TargetMode = %q, want psychoanalytic", decision.TargetMode)
	}
	if !strings.Contains(decision.Reason, "childhood") {
		t.Fatalf("Reason %q should list the matched keywords", decision.Reason)
	}
}

func TestKeywordPolicy_NoMatchKeepsMode(t *testing.T) {
	policy := NewKeywordPolicy(builtinKeywords(t))

	decision, err := policy.Decide(context.Background(), therapy.ModeHumanistic,
		"the weather has been lovely this week", nil, 1)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.ShouldRedirect {
		t.Fatalf("unexpected redirection to %q", decision.TargetMode)
	}
}

func TestKeywordPolicy_CurrentModeKeywordsIgnored(t *testing.T) {
	policy := NewKeywordPolicy(builtinKeywords(t))

	// "thoughts" and "coping" are CBT triggers; while CBT is active they
	// must not produce a self-redirect.
	decision, err := policy.Decide(context.Background(), therapy.ModeCBT,
		"my thoughts and coping have improved", nil, 2)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.ShouldRedirect {
		t.Fatalf("self-redirect produced: %+v", decision)
	}
}

func TestKeywordPolicy_AntiOscillation(t *testing.T) {
	policy := NewKeywordPolicy(builtinKeywords(t))

	// Previous turn ran under CBT; a CBT candidate must be rejected even
	// though the message matches its keywords.
	recent := []therapy.Turn{
		{Mode: therapy.ModeHumanistic, UserMessage: "who am I really"},
		{Mode: therapy.ModeCBT, UserMessage: "give me techniques"},
	}
	decision, err := policy.Decide(context.Background(), therapy.ModeHumanistic,
		"I need practical techniques to manage this", recent, 2)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.ShouldRedirect {
		t.Fatalf("oscillating redirect produced: %+v", decision)
	}
}

func TestKeywordPolicy_AntiOscillationSkipsSystemTurns(t *testing.T) {
	policy := NewKeywordPolicy(builtinKeywords(t))

	// The trailing system turn is bookkeeping; the rule looks at the last
	// real exchange, which ran under psychoanalytic, so CBT is allowed.
	recent := []therapy.Turn{
		{Mode: therapy.ModePsychoanalytic, UserMessage: "my childhood keeps coming up"},
		{Mode: therapy.ModeCBT, System: true},
	}
	decision, err := policy.Decide(context.Background(), therapy.ModePsychoanalytic,
		"I want concrete techniques to manage stress", recent, 3)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decision.ShouldRedirect || decision.TargetMode != therapy.ModeCBT {
		t.Fatalf("expected redirect to cbt, got %+v", decision)
	}
}

func TestKeywordPolicy_ConfidenceFormula(t *testing.T) {
	keywords := map[therapy.Mode][]string{
		therapy.ModeCBT:            {"techniques", "coping", "stress", "habit"},
		therapy.ModeHumanistic:     {"meaning"},
		therapy.ModePsychoanalytic: {"childhood"},
	}
	policy := NewKeywordPolicy(keywords)

	decision, err := policy.Decide(context.Background(), therapy.ModeHumanistic,
		"stress and coping", nil, 1)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decision.ShouldRedirect {
		t.Fatal("expected a redirection")
	}
	// 2 matched out of 4 keywords in the category.
	if decision.Confidence != 0.5 {
		t.Fatalf("Confidence = %v, want 0.5", decision.Confidence)
	}
}

func TestKeywordPolicy_FixedCandidateOrder(t *testing.T) {
	// Both humanistic and psychoanalytic match; humanistic comes first in
	// the evaluation order and must win.
	keywords := map[therapy.Mode][]string{
		therapy.ModeCBT:            {"techniques"},
		therapy.ModeHumanistic:     {"meaning"},
		therapy.ModePsychoanalytic: {"childhood"},
	}
	policy := NewKeywordPolicy(keywords)

	decision, err := policy.Decide(context.Background(), therapy.ModeCBT,
		"searching for meaning in my childhood", nil, 1)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.TargetMode != therapy.ModeHumanistic {
		t.Fatalf("TargetMode = %q, want humanistic", decision.TargetMode)
	}
}
