package therapy

import (
	"strings"
	"testing"
)

func TestInstructionsPerMode(t *testing.T) {
	tests := []struct {
		mode Mode
		name string
	}{
		{ModeCBT, "Sarah Chen"},
		{ModeHumanistic, "Michael Rodriguez"},
		{ModePsychoanalytic, "Elena Petrov"},
	}
	for _, tt := range tests {
		got := Instructions(tt.mode)
		if !strings.Contains(got, tt.name) {
			t.Errorf("Instructions(%q) missing persona %q", tt.mode, tt.name)
		}
	}
	// Unknown modes get the humanistic default rather than an empty prompt.
	if got := Instructions(Mode("gestalt")); !strings.Contains(got, "Michael Rodriguez") {
		t.Errorf("unknown mode fell through to %q", got)
	}
}

func TestBuildUserContent(t *testing.T) {
	history := []Turn{
		{UserMessage: "I feel stuck", AgentResponse: "Tell me more."},
		{AgentResponse: "Therapy mode changed.", System: true},
		{UserMessage: "It started at work", AgentResponse: "What happened there?"},
	}
	got := BuildUserContent("my boss yelled at me", history)

	if !strings.Contains(got, "user: I feel stuck") {
		t.Fatalf("history not folded in:\n%s", got)
	}
	if !strings.Contains(got, "assistant: What happened there?") {
		t.Fatalf("assistant turns missing:\n%s", got)
	}
	if strings.Contains(got, "Therapy mode changed.") {
		t.Fatalf("system turn leaked into the prompt:\n%s", got)
	}
	if !strings.HasSuffix(got, "my boss yelled at me") {
		t.Fatalf("new message must come last:\n%s", got)
	}
}

func TestBuildUserContentWithoutHistory(t *testing.T) {
	got := BuildUserContent("hello", nil)
	if strings.Contains(got, "Conversation so far") {
		t.Fatalf("empty history should not render a history block:\n%s", got)
	}
	if !strings.Contains(got, "hello") {
		t.Fatalf("message missing:\n%s", got)
	}
}
