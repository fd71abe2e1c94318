package therapy

import (
	"context"
	"strings"

	"github.com/quietroomlabs/haven/pkg/logger"
)

// StaticCrisisReply is the pre-approved disclaimer-and-helpline message
// returned whenever crisis phrasing is detected and no responder is
// available (or generation fails). Returned verbatim; never templated.
const StaticCrisisReply = `CRISIS DETECTED - IMMEDIATE ACTION REQUIRED

This sounds very serious, and I care about your safety. I am an AI and cannot provide the professional help you need right now.

PLEASE REACH OUT FOR HELP IMMEDIATELY:
1. Call a crisis helpline:
   - Vandrevala Foundation: 9999666555 (24/7)
   - iCALL Helpline: 022-25521111 (Mon-Sat, 10 AM - 8 PM)
   - AASRA: 9820466726 (24/7)
2. Emergency Services: call 112
3. Reach out to a licensed mental health professional.

Your life has value, and there are people who want to help you.`

// CrisisResponder generates a soothing crisis reply. Implemented by the
// provider-backed responder; any error degrades to StaticCrisisReply.
type CrisisResponder interface {
	SootheCrisis(ctx context.Context, message string) (string, error)
}

// CrisisDetector substring-matches messages against a fixed phrase list.
// A single hit is always sufficient: the detector deliberately biases
// toward over-detection.
type CrisisDetector struct {
	keywords  []string
	responder CrisisResponder
}

// NewCrisisDetector lower-cases the phrase list once up front. responder
// may be nil, in which case CrisisReply always returns the static text.
func NewCrisisDetector(keywords []string, responder CrisisResponder) *CrisisDetector {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &CrisisDetector{keywords: lowered, responder: responder}
}

// Detect is a pure function of the message: case-insensitive substring
// match, severity high iff anything matched.
func (d *CrisisDetector) Detect(message string) CrisisResult {
	lower := strings.ToLower(message)
	var matched []string
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	result := CrisisResult{
		IsCrisis:        len(matched) > 0,
		MatchedKeywords: matched,
		Severity:        SeverityLow,
	}
	if result.IsCrisis {
		result.Severity = SeverityHigh
	}
	return result
}

// CrisisReply returns the message shown to a user after a crisis hit.
// When a responder is configured it asks for a freshly generated soothing
// reply; generation failure falls back to the static helpline text.
func (d *CrisisDetector) CrisisReply(ctx context.Context, message string) string {
	if d.responder == nil {
		return StaticCrisisReply
	}
	reply, err := d.responder.SootheCrisis(ctx, message)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			logger.WarnCF("crisis", "Soothing reply generation failed, using static response", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return StaticCrisisReply
	}
	return reply
}
