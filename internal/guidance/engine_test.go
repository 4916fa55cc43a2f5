package guidance

import (
	"strings"
	"testing"
	"time"

	"github.com/yberthe/call-triage/internal/triage"
	"github.com/yberthe/call-triage/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// fakeClock returns an engine whose clock can be moved manually.
func fakeClock(t *testing.T) (*Engine, *time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	engine := NewEngineWithClock(testLogger(t), func() time.Time { return now })
	return engine, &now
}

func TestAdvanceEntersAtStepZero(t *testing.T) {
	engine, _ := fakeClock(t)

	instruction, state := engine.Advance(nil, KindCPR, "au secours")
	if state == nil || state.StepIndex != 0 {
		t.Fatalf("state = %+v, want step 0", state)
	}
	if instruction != Get(KindCPR).Steps[0] {
		t.Errorf("instruction = %q, want first CPR step", instruction)
	}
}

func TestAdvanceFeedbackTransitions(t *testing.T) {
	engine, _ := fakeClock(t)

	_, state := engine.Advance(nil, KindCPR, "")

	// No feedback stays at the current step.
	_, state = engine.Advance(state, KindCPR, "")
	if state.StepIndex != 0 {
		t.Errorf("step = %d, want 0 without feedback", state.StepIndex)
	}

	// Affirmative advances one step.
	_, state = engine.Advance(state, KindCPR, "oui c'est fait")
	if state.StepIndex != 1 {
		t.Errorf("step = %d, want 1 after affirmative", state.StepIndex)
	}

	// Confusion sets needs-repeat without advancing.
	_, state = engine.Advance(state, KindCPR, "comment je fais ça ?")
	if state.StepIndex != 1 {
		t.Errorf("step = %d, want 1 after confusion", state.StepIndex)
	}
	if !state.NeedsRepeat {
		t.Error("needs-repeat should be set after confusion feedback")
	}

	// The flag clears on the next advance.
	_, state = engine.Advance(state, KindCPR, "ok")
	if state.NeedsRepeat {
		t.Error("needs-repeat should clear on the next call")
	}
}

func TestAdvanceClampsAtTerminalStep(t *testing.T) {
	engine, _ := fakeClock(t)
	last := len(Get(KindBleeding).Steps) - 1

	_, state := engine.Advance(nil, KindBleeding, "")
	prev := 0
	for i := 0; i < 20; i++ {
		_, state = engine.Advance(state, KindBleeding, "ok")
		if state.StepIndex < prev {
			t.Fatalf("step index decreased: %d -> %d", prev, state.StepIndex)
		}
		if state.StepIndex > last {
			t.Fatalf("step index %d exceeded last valid index %d", state.StepIndex, last)
		}
		prev = state.StepIndex
	}
	if state.StepIndex != last {
		t.Errorf("step = %d, want terminal step %d", state.StepIndex, last)
	}
}

func TestAdvanceTimeBasedEncouragement(t *testing.T) {
	engine, now := fakeClock(t)

	_, state := engine.Advance(nil, KindCPR, "")

	// Inside the first two minutes: no encouragement.
	*now = now.Add(60 * time.Second)
	instruction, state := engine.Advance(state, KindCPR, "")
	if strings.HasPrefix(instruction, encouragementPhrase) {
		t.Error("no encouragement expected before the first period elapses")
	}

	// Just past two minutes, inside the window.
	*now = now.Add(65 * time.Second) // elapsed 125s, 125 % 120 = 5 < 10
	instruction, state = engine.Advance(state, KindCPR, "")
	if !strings.HasPrefix(instruction, encouragementPhrase) {
		t.Errorf("instruction = %q, want encouragement prefix", instruction)
	}

	// Outside the window again.
	*now = now.Add(30 * time.Second) // elapsed 155s
	instruction, _ = engine.Advance(state, KindCPR, "")
	if strings.HasPrefix(instruction, encouragementPhrase) {
		t.Error("no encouragement expected outside the periodic window")
	}
}

func TestAdvanceProtocolSwitchResetsState(t *testing.T) {
	engine, _ := fakeClock(t)

	_, state := engine.Advance(nil, KindCPR, "")
	_, state = engine.Advance(state, KindCPR, "oui")
	if state.StepIndex != 1 {
		t.Fatalf("step = %d, want 1", state.StepIndex)
	}

	_, state = engine.Advance(state, KindChoking, "oui")
	if state.Kind != KindChoking || state.StepIndex != 0 {
		t.Errorf("state = %+v, want choking protocol at step 0", state)
	}
}

func TestApplicable(t *testing.T) {
	immediate := triage.ClassificationResult{Tier: triage.TierImmediate}
	minor := triage.ClassificationResult{Tier: triage.TierMinor}

	cprFacts := triage.NewCollectedFacts()
	cprFacts.Consciousness = triage.Unconscious
	cprFacts.Breathing = triage.No
	cprFacts.WitnessPresent = true

	if !Applicable(KindCPR, immediate, cprFacts) {
		t.Error("CPR should be applicable for an unconscious non-breathing patient with a witness")
	}
	if Applicable(KindCPR, minor, cprFacts) {
		t.Error("CPR requires the immediate tier")
	}

	noWitness := cprFacts
	noWitness.WitnessPresent = false
	if Applicable(KindCPR, immediate, noWitness) {
		t.Error("CPR requires a witness able to act")
	}

	chokingFacts := triage.NewCollectedFacts()
	chokingFacts.Symptoms = []string{triage.SymptomChoking}
	if !Applicable(KindChoking, minor, chokingFacts) {
		t.Error("choking relief should be applicable with an obstruction symptom")
	}

	if Select(immediate, cprFacts) != KindCPR {
		t.Error("CPR should be selected first for a cardiac arrest pattern")
	}
	if Select(minor, triage.NewCollectedFacts()) != KindNone {
		t.Error("no protocol should be selected without an applicable pattern")
	}
}
