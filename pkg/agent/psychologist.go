// Package agent wires the therapy turn pipeline: crisis check, mode
// routing, responder call, tag extraction, and log persistence. All
// per-turn failures degrade to a valid reply; only startup configuration
// problems are fatal.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/quietroomlabs/haven/pkg/config"
	"github.com/quietroomlabs/haven/pkg/logger"
	"github.com/quietroomlabs/haven/pkg/providers"
	"github.com/quietroomlabs/haven/pkg/router"
	"github.com/quietroomlabs/haven/pkg/therapy"
)

// fallbackReply is returned when the responder fails. Apologetic and
// retry-suggesting, never a stack trace or an empty string.
const fallbackReply = "I'm experiencing technical difficulties. Please try again."

// ConversationLog is the slice of the store the pipeline needs.
type ConversationLog interface {
	Append(ctx context.Context, turn therapy.Turn) error
	Recent(ctx context.Context, userID string, limit int) ([]therapy.Turn, error)
	SessionTurns(ctx context.Context, sessionID string, limit int) ([]therapy.Turn, error)
	ByTag(ctx context.Context, userID, tag string) ([]therapy.Turn, error)
}

// Reply is the post-turn result handed to the process boundary.
type Reply struct {
	Text   string
	Mode   therapy.Mode
	Crisis bool
	// Notice carries a user-visible mode-change announcement when the
	// periodic classifier switched personas this turn.
	Notice string
}

// Psychologist owns per-user sessions and runs the turn pipeline. Session
// state is isolated per user; the store is shared.
type Psychologist struct {
	cfg      *config.Config
	provider providers.LLMProvider
	log      ConversationLog
	detector *therapy.CrisisDetector
	tagger   *therapy.TagExtractor
	policy   router.Policy
	// announceSwitch is set for the classifier policy, which emits a
	// user-visible notice and a synthetic system turn on mode change.
	announceSwitch bool

	mu       sync.Mutex
	sessions map[string]*Session
}

// New builds the pipeline from validated config. The keyword table has
// already passed its own validation.
func New(cfg *config.Config, table *config.KeywordTable, provider providers.LLMProvider, log ConversationLog) *Psychologist {
	p := &Psychologist{
		cfg:      cfg,
		provider: provider,
		log:      log,
		tagger:   therapy.NewTagExtractor(table.Tags),
		sessions: make(map[string]*Session),
	}
	p.detector = therapy.NewCrisisDetector(table.Crisis, soother{provider: provider, model: cfg.Agent.Model})

	switch cfg.Agent.RoutingPolicy {
	case config.PolicyClassifier:
		p.policy = router.NewClassifierPolicy(provider, cfg.Agent.Model, cfg.Agent.ClassifyAfterTurns)
		p.announceSwitch = true
	default:
		keywords := make(map[therapy.Mode][]string, len(table.Redirection))
		for name, list := range table.Redirection {
			keywords[therapy.Mode(name)] = list
		}
		p.policy = router.NewKeywordPolicy(keywords)
	}
	return p
}

// StartSession begins a fresh session for the user, discarding any live
// one. Durable history is unaffected.
func (p *Psychologist) StartSession(userID string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	session := NewSession(userID, p.cfg.DefaultMode())
	p.sessions[userID] = session
	logger.InfoCF("agent", "Session started", map[string]interface{}{
		"user_id":    userID,
		"session_id": session.ID,
		"mode":       string(session.ActiveMode),
	})
	return session
}

// Session returns the user's live session, starting one on first contact.
func (p *Psychologist) Session(userID string) *Session {
	p.mu.Lock()
	session, ok := p.sessions[userID]
	p.mu.Unlock()
	if ok {
		return session
	}
	return p.StartSession(userID)
}

// ProcessMessage runs one full turn. The returned error is non-nil only
// when log persistence failed; the reply is valid either way.
func (p *Psychologist) ProcessMessage(ctx context.Context, userID, message string) (Reply, error) {
	session := p.Session(userID)
	session.mu.Lock()
	defer session.mu.Unlock()

	crisis := p.detector.Detect(message)
	if crisis.IsCrisis {
		return p.crisisTurn(ctx, session, message, crisis)
	}

	oldMode := session.ActiveMode
	decision, err := p.policy.Decide(ctx, session.ActiveMode, message, session.Recent(), session.TurnCount)
	if err != nil {
		// Mode stability is preferred over crashing or guessing.
		logger.WarnCF("agent", "Mode assessment failed, keeping current mode", map[string]interface{}{
			"error":      err.Error(),
			"session_id": session.ID,
			"mode":       string(session.ActiveMode),
		})
		decision = therapy.RedirectionDecision{}
	}

	var notice string
	if decision.ShouldRedirect {
		session.SwitchMode(decision.TargetMode)
		logger.InfoCF("agent", "Redirecting specialist", map[string]interface{}{
			"session_id": session.ID,
			"from":       string(oldMode),
			"to":         string(session.ActiveMode),
			"reason":     decision.Reason,
			"confidence": decision.Confidence,
		})
		if p.announceSwitch {
			notice = fmt.Sprintf("Switching approach: %s will take it from here.", session.ActiveMode.Display())
			p.appendModeChangeTurn(ctx, session, oldMode)
		}
	}

	text := p.generate(ctx, session, message)

	turn := therapy.Turn{
		UserID:        session.UserID,
		SessionID:     session.ID,
		UserMessage:   message,
		AgentResponse: text,
		Tags:          p.tagger.Extract(message),
		Mode:          session.ActiveMode,
	}
	if session.ActiveMode != oldMode {
		turn.RedirectedFrom = oldMode
	}

	appendErr := p.append(ctx, session, turn)
	return Reply{Text: text, Mode: session.ActiveMode, Notice: notice}, appendErr
}

// crisisTurn short-circuits routing entirely: safety reply, turn logged
// with the matched phrases as tags, mode untouched.
func (p *Psychologist) crisisTurn(ctx context.Context, session *Session, message string, crisis therapy.CrisisResult) (Reply, error) {
	logger.WarnCF("agent", "Crisis phrasing detected", map[string]interface{}{
		"session_id": session.ID,
		"keywords":   crisis.MatchedKeywords,
		"severity":   string(crisis.Severity),
	})
	text := p.detector.CrisisReply(ctx, message)
	turn := therapy.Turn{
		UserID:         session.UserID,
		SessionID:      session.ID,
		UserMessage:    message,
		AgentResponse:  text,
		Tags:           crisis.MatchedKeywords,
		CrisisDetected: true,
		Mode:           session.ActiveMode,
	}
	appendErr := p.append(ctx, session, turn)
	return Reply{Text: text, Mode: session.ActiveMode, Crisis: true}, appendErr
}

// generate asks the responder for a reply under the active persona
// instructions; any failure degrades to the fallback text.
func (p *Psychologist) generate(ctx context.Context, session *Session, message string) string {
	resp, err := p.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: therapy.Instructions(session.ActiveMode)},
		{Role: "user", Content: therapy.BuildUserContent(message, session.Recent())},
	}, p.cfg.Agent.Model, map[string]interface{}{
		"max_tokens":  p.cfg.Agent.MaxTokens,
		"temperature": p.cfg.Agent.Temperature,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			logger.ErrorCF("agent", "Reply generation failed", map[string]interface{}{
				"error":      err.Error(),
				"session_id": session.ID,
			})
		}
		return fallbackReply
	}
	return resp.Content
}

// appendModeChangeTurn logs the synthetic system turn recording a
// classifier-driven switch.
func (p *Psychologist) appendModeChangeTurn(ctx context.Context, session *Session, oldMode therapy.Mode) {
	turn := therapy.Turn{
		UserID:         session.UserID,
		SessionID:      session.ID,
		AgentResponse:  fmt.Sprintf("Therapy mode changed from %s to %s.", oldMode, session.ActiveMode),
		Tags:           []string{"mode_change", string(oldMode), string(session.ActiveMode)},
		Mode:           session.ActiveMode,
		RedirectedFrom: oldMode,
		System:         true,
	}
	if err := p.log.Append(ctx, turn); err != nil {
		logger.WarnCF("agent", "Failed to log mode change", map[string]interface{}{
			"error":      err.Error(),
			"session_id": session.ID,
		})
	}
}

func (p *Psychologist) append(ctx context.Context, session *Session, turn therapy.Turn) error {
	session.RecordTurn(turn)
	if err := p.log.Append(ctx, turn); err != nil {
		logger.ErrorCF("agent", "Failed to persist turn", map[string]interface{}{
			"error":      err.Error(),
			"session_id": session.ID,
		})
		return err
	}
	return nil
}

// History returns the user's most recent turns, newest first. A derived
// view over the store, not separate state.
func (p *Psychologist) History(ctx context.Context, userID string, limit int) ([]therapy.Turn, error) {
	if limit <= 0 {
		limit = p.cfg.Agent.HistoryLimit
	}
	return p.log.Recent(ctx, userID, limit)
}

// TurnsByTag returns the user's turns carrying a topic tag, newest first.
func (p *Psychologist) TurnsByTag(ctx context.Context, userID, tag string) ([]therapy.Turn, error) {
	return p.log.ByTag(ctx, userID, tag)
}

// SessionSummary renders the live session's recent exchanges as a short
// bullet list.
func (p *Psychologist) SessionSummary(ctx context.Context, userID string) (string, error) {
	session := p.Session(userID)
	turns, err := p.log.SessionTurns(ctx, session.ID, 0)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "No session summary available yet.", nil
	}

	var b strings.Builder
	b.WriteString("Session summary:\n")
	count := 0
	for _, turn := range turns {
		if turn.System {
			continue
		}
		b.WriteString("- User: " + clip(turn.UserMessage, 100) + "\n")
		b.WriteString("  AI: " + clip(turn.AgentResponse, 100) + "\n")
		count++
		if count >= 4 {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Status describes the live session for the process boundary.
func (p *Psychologist) Status(userID string) string {
	session := p.Session(userID)
	session.mu.Lock()
	defer session.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "Current specialist: %s\n", session.ActiveMode.Display())
	fmt.Fprintf(&b, "Session: %s (%d turns)\n", session.ID, session.TurnCount)
	if len(session.ModeHistory) > 1 {
		parts := make([]string, 0, len(session.ModeHistory))
		for _, change := range session.ModeHistory {
			parts = append(parts, string(change.Mode))
		}
		fmt.Fprintf(&b, "Mode history: %s\n", strings.Join(parts, " -> "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func clip(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// soother adapts the provider to the crisis responder boundary.
type soother struct {
	provider providers.LLMProvider
	model    string
}

func (s soother) SootheCrisis(ctx context.Context, message string) (string, error) {
	resp, err := s.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: therapy.SoothingCrisisInstructions()},
		{Role: "user", Content: message},
	}, s.model, map[string]interface{}{
		"max_tokens":  400,
		"temperature": 0.4,
	})
	if err != nil {
		return "", err
	}
	return resp.Content + "\n\n" + therapy.StaticCrisisReply, nil
}
