package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/quietroomlabs/haven/pkg/providers"
	"github.com/quietroomlabs/haven/pkg/therapy"
)

// ClassifierPolicy re-assesses the optimal mode by asking the responder to
// pick a label from the closed set. The call is skipped until the session
// has MinTurns recorded turns; with too little context the configured mode
// stands unconditionally.
type ClassifierPolicy struct {
	provider providers.LLMProvider
	model    string
	// MinTurns is the turn threshold before classification starts.
	MinTurns int
}

func NewClassifierPolicy(provider providers.LLMProvider, model string, minTurns int) *ClassifierPolicy {
	if minTurns <= 0 {
		minTurns = 2
	}
	return &ClassifierPolicy{provider: provider, model: model, MinTurns: minTurns}
}

func (p *ClassifierPolicy) Decide(ctx context.Context, current therapy.Mode, message string, recent []therapy.Turn, turnCount int) (therapy.RedirectionDecision, error) {
	if turnCount < p.MinTurns {
		return therapy.RedirectionDecision{}, nil
	}

	resp, err := p.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: therapy.ClassifyModeInstructions()},
		{Role: "user", Content: therapy.BuildUserContent(message, recent)},
	}, p.model, map[string]interface{}{
		"max_tokens":  10,
		"temperature": 0.0,
	})
	if err != nil {
		// Mode stability beats guessing: the caller keeps the current
		// mode on any classification failure.
		return therapy.RedirectionDecision{}, fmt.Errorf("classify mode: %w", err)
	}

	target := parseModeLabel(resp.Content)
	if target == current {
		return therapy.RedirectionDecision{}, nil
	}
	return therapy.RedirectionDecision{
		ShouldRedirect: true,
		TargetMode:     target,
		Reason:         fmt.Sprintf("periodic assessment selected %s", strings.ToUpper(string(target))),
		Confidence:     1,
	}, nil
}

// parseModeLabel extracts the first token of the reply and maps it onto
// the closed mode set. Anything unrecognized defaults to CBT.
func parseModeLabel(s string) therapy.Mode {
	s = strings.ToLower(strings.TrimSpace(s))
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	s = strings.Trim(s, ".,!:;\"'")
	mode, err := therapy.ParseMode(s)
	if err != nil {
		return therapy.ModeCBT
	}
	return mode
}
