package triage

import (
	"github.com/yberthe/call-triage/pkg/logger"
)

// Engine is the rule-tree urgency classifier. Classify is pure and
// deterministic: rules are evaluated top to bottom and the first match wins,
// so a later rule implicitly requires every earlier condition to be false.
type Engine struct {
	rules  []rule
	logger *logger.Logger
}

type rule struct {
	criterion string
	match     func(f CollectedFacts) bool
	outcome   func(f CollectedFacts) (Tier, int, float64)
}

// NewEngine creates a classifier with the ordered decision table.
func NewEngine(log *logger.Logger) *Engine {
	e := &Engine{logger: log.Named("classifier")}
	e.rules = []rule{
		{
			criterion: "urgence vitale automatique",
			match:     func(f CollectedFacts) bool { return f.PreliminaryUrgent },
			outcome:   fixed(TierImmediate, 95),
		},
		{
			criterion: "tableau d'arrêt cardiaque",
			match: func(f CollectedFacts) bool {
				return f.Consciousness == Unconscious && f.Breathing == No
			},
			outcome: fixed(TierImmediate, 100),
		},
		{
			criterion: "inconscience, ventilation inconnue",
			match: func(f CollectedFacts) bool {
				return f.Consciousness == Unconscious && f.Breathing == Unknown
			},
			outcome: fixed(TierImmediate, 100),
		},
		{
			criterion: "convulsions en cours",
			match:     func(f CollectedFacts) bool { return f.HasSymptom(SymptomConvulsions) },
			outcome:   fixed(TierImmediate, 90),
		},
		{
			criterion: "hémorragie massive non contrôlée",
			match:     func(f CollectedFacts) bool { return f.HasSymptom(SymptomMassiveBleed) },
			outcome:   fixed(TierImmediate, 95),
		},
		{
			criterion: "douleur thoracique récente",
			match: func(f CollectedFacts) bool {
				return f.HasSymptom(SymptomChestPain) && recentOnset(f)
			},
			outcome: func(f CollectedFacts) (Tier, int, float64) {
				// Shock signs alongside recent chest pain upgrade the tier.
				if f.HasSymptom(SymptomShockSigns) {
					return TierImmediate, 95, 1.0
				}
				return TierPotential, 80, 1.0
			},
		},
		{
			criterion: "suspicion d'AVC",
			match:     func(f CollectedFacts) bool { return f.HasSymptom(SymptomStroke) },
			outcome:   fixed(TierPotential, 85),
		},
		{
			criterion: "traumatisme sévère",
			match: func(f CollectedFacts) bool {
				if f.HasSymptom(SymptomRoadAccident) {
					return true
				}
				return f.FallHeightMeters != nil && *f.FallHeightMeters > 3
			},
			outcome: fixed(TierPotential, 75),
		},
		{
			criterion: "douleur abdominale aiguë",
			match:     func(f CollectedFacts) bool { return f.HasSymptom(SymptomAbdominalPain) },
			outcome:   fixed(TierRelative, 60),
		},
		{
			criterion: "fièvre aux âges extrêmes",
			match: func(f CollectedFacts) bool {
				if !f.HasSymptom(SymptomFever) || f.Age == nil {
					return false
				}
				return *f.Age < 1 || *f.Age > 75
			},
			outcome: fixed(TierRelative, 55),
		},
	}
	return e
}

// fixed builds an outcome with a constant tier and score at full confidence.
func fixed(t Tier, score int) func(CollectedFacts) (Tier, int, float64) {
	return func(CollectedFacts) (Tier, int, float64) { return t, score, 1.0 }
}

// recentOnset reports whether the symptom onset is under 12 hours. Callers
// rarely volunteer a duration; absence of one is treated as acute.
func recentOnset(f CollectedFacts) bool {
	return f.SymptomDurationHours == nil || *f.SymptomDurationHours < 12
}

// Classify evaluates the decision table against the accumulated facts and
// returns a fresh result. It never fails.
func (e *Engine) Classify(facts CollectedFacts) ClassificationResult {
	var (
		tier       = TierMinor
		score      = 30
		confidence = 0.6 // default branch starts low
		criteria   []string
	)

	for _, r := range e.rules {
		if r.match(facts) {
			tier, score, confidence = r.outcome(facts)
			criteria = append(criteria, r.criterion)
			break
		}
	}
	if len(criteria) == 0 {
		criteria = []string{"aucun critère de gravité"}
	}

	// Confidence adjustment, applied after tier selection.
	if facts.Address == "" {
		confidence -= 0.10
	}
	if facts.Consciousness == ConsciousnessUnknown && facts.WitnessPresent {
		confidence -= 0.15
	}
	confidence = clamp01(confidence)

	resource, deadline := resourceForTier(tier)
	result := ClassificationResult{
		Tier:                tier,
		Score:               score,
		MatchedCriteria:     criteria,
		RecommendedResource: resource,
		DeadlineMinutes:     deadline,
		Confidence:          confidence,
		EscalateToPhysician: confidence < 0.8 || tier == TierImmediate || tier == TierPotential,
	}

	e.logger.Debug("Classified call",
		logger.String("tier", string(tier)),
		logger.Int("score", score),
		logger.Float64("confidence", confidence),
		logger.Bool("escalate", result.EscalateToPhysician))
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
