// Package router holds the mode-selection state machine: the per-message
// rules deciding which specialist persona handles a turn. Two policies
// exist, keyword-triggered redirection and periodic LLM classification;
// both produce the same RedirectionDecision contract so they are
// interchangeable behind the Policy interface.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/quietroomlabs/haven/pkg/logger"
	"github.com/quietroomlabs/haven/pkg/therapy"
)

// Policy decides, per incoming message, whether the active mode should
// change. recent is the session's prior turns in chronological order;
// turnCount is the number of turns already recorded for the session.
type Policy interface {
	Decide(ctx context.Context, current therapy.Mode, message string, recent []therapy.Turn, turnCount int) (therapy.RedirectionDecision, error)
}

// KeywordPolicy redirects synchronously on keyword hits. Candidates are
// evaluated in the fixed order CBT, HUMANISTIC, PSYCHOANALYTIC (skipping
// the current mode); the first accepted candidate wins.
type KeywordPolicy struct {
	keywords map[therapy.Mode][]string
}

// NewKeywordPolicy lower-cases the per-mode keyword sets once.
func NewKeywordPolicy(keywords map[therapy.Mode][]string) *KeywordPolicy {
	cleaned := make(map[therapy.Mode][]string, len(keywords))
	for mode, list := range keywords {
		lowered := make([]string, 0, len(list))
		for _, kw := range list {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				lowered = append(lowered, kw)
			}
		}
		cleaned[mode] = lowered
	}
	return &KeywordPolicy{keywords: cleaned}
}

func (p *KeywordPolicy) Decide(ctx context.Context, current therapy.Mode, message string, recent []therapy.Turn, turnCount int) (therapy.RedirectionDecision, error) {
	lower := strings.ToLower(message)

	for _, candidate := range therapy.Modes() {
		if candidate == current {
			continue
		}
		keywords := p.keywords[candidate]
		var matched []string
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if !p.beneficial(candidate, recent) {
			logger.DebugCF("router", "Redirection rejected", map[string]interface{}{
				"candidate": string(candidate),
				"current":   string(current),
			})
			continue
		}
		return therapy.RedirectionDecision{
			ShouldRedirect: true,
			TargetMode:     candidate,
			Reason:         fmt.Sprintf("detected %s keywords: %s", strings.ToUpper(string(candidate)), strings.Join(matched, ", ")),
			Confidence:     float64(len(matched)) / float64(len(keywords)),
		}, nil
	}
	return therapy.RedirectionDecision{}, nil
}

// beneficial applies the anti-oscillation rule: a candidate equal to the
// immediately preceding turn's mode is rejected, breaking one-step
// redirect loops.
func (p *KeywordPolicy) beneficial(candidate therapy.Mode, recent []therapy.Turn) bool {
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].System {
			continue
		}
		return recent[i].Mode != candidate
	}
	return true
}
