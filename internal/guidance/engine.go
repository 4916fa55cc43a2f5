package guidance

import (
	"strings"
	"time"

	"github.com/yberthe/call-triage/pkg/logger"
)

// State is the progress cursor for an active protocol on one call. It is
// created lazily on first activation and persists for the rest of the call;
// the caller ends guidance by discarding it.
type State struct {
	Kind        Kind      `json:"kind"`
	StepIndex   int       `json:"step_index"`
	StartedAt   time.Time `json:"started_at"`
	NeedsRepeat bool      `json:"needs_repeat"`
	Feedback    []string  `json:"feedback,omitempty"`
}

// Feedback keyword sets shared by all protocols.
var (
	affirmativeTokens = []string{
		"oui", "ok", "d'accord", "c'est fait", "fait", "voilà",
		"je le fais", "je suis en train", "ça y est", "done",
	}
	confusionTokens = []string{
		"comment", "pas compris", "comprends pas", "je n'y arrive pas",
		"j'y arrive pas", "aidez-moi", "help", "répétez",
	}
)

const (
	encouragementPhrase = "Vous vous débrouillez très bien, les secours arrivent. "

	// Encouragement fires when elapsed time passes each multiple of this
	// period; evaluated lazily on every Advance rather than on a timer.
	encouragementPeriod = 120 * time.Second
	encouragementWindow = 10 * time.Second
)

// Engine advances per-call guidance protocols. It is pure and synchronous:
// all timing derives from the injected clock and the state's start
// timestamp, never from a background scheduler.
type Engine struct {
	now    func() time.Time
	logger *logger.Logger
}

// NewEngine creates a guidance engine using the wall clock.
func NewEngine(log *logger.Logger) *Engine {
	return NewEngineWithClock(log, func() time.Time { return time.Now().UTC() })
}

// NewEngineWithClock creates a guidance engine with an injected clock.
func NewEngineWithClock(log *logger.Logger, now func() time.Time) *Engine {
	return &Engine{now: now, logger: log.Named("guidance")}
}

// Advance moves the step cursor for the given protocol and returns the next
// spoken instruction together with the new state.
//
// A nil state (or a state for a different protocol) enters the protocol at
// step 0. Without feedback the cursor stays put. Affirmative feedback
// advances one step, clamped to the terminal sustain step. Confusion
// feedback sets the needs-repeat flag so the caller re-delivers the current
// step with more detail.
func (e *Engine) Advance(state *State, kind Kind, feedback string) (string, *State) {
	proto := Get(kind)
	if proto == nil {
		return "", state
	}

	if state == nil || state.Kind != kind {
		state = &State{Kind: kind, StepIndex: 0, StartedAt: e.now()}
		e.logger.Info("Guidance protocol activated",
			logger.String("protocol", string(kind)))
		return e.instruction(proto, state), state
	}

	state.NeedsRepeat = false
	if feedback != "" {
		state.Feedback = append(state.Feedback, feedback)
		lower := strings.ToLower(feedback)
		switch {
		case containsAny(lower, confusionTokens):
			state.NeedsRepeat = true
		case containsAny(lower, affirmativeTokens):
			if state.StepIndex < len(proto.Steps)-1 {
				state.StepIndex++
			}
		}
	}

	return e.instruction(proto, state), state
}

// instruction renders the current step, prefixed with a periodic
// encouragement once the session has run long enough.
func (e *Engine) instruction(proto *Protocol, state *State) string {
	text := proto.Steps[state.StepIndex]
	elapsed := e.now().Sub(state.StartedAt)
	if elapsed > encouragementPeriod && elapsed%encouragementPeriod < encouragementWindow {
		text = encouragementPhrase + text
	}
	return text
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
