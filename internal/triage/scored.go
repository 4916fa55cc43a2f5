package triage

import "strings"

// StructuredInput carries facts that arrive pre-extracted by the structured
// data pipeline, with the extraction confidence attached.
type StructuredInput struct {
	Age                  *int
	Gender               Gender
	Symptoms             []string
	Consciousness        Consciousness
	Breathing            TriState
	Bleeding             TriState
	MedicalHistory       []string
	ExtractionConfidence float64
}

// Keyword lists for the additive scoring path. Matching is a plain
// case-insensitive substring check over the free-text symptom and history
// entries.
var (
	criticalSymptomKeywords = []string{
		"douleur thoracique", "chest pain", "arrêt cardiaque",
		"cardiac arrest", "avc", "stroke", "convulsions", "inconscient",
		"unconscious", "ne respire plus", "not breathing", "hémorragie",
		"hemorrhage", "choc", "shock",
	}
	criticalHistoryKeywords = []string{
		"cardiaque", "cardiac", "diabète", "diabetes", "avc", "stroke",
		"épilepsie", "epilepsy", "asthme", "asthma",
	}
)

// ScoreStructured is the second, independent classification path for
// pre-extracted facts. It computes an additive severity score and maps it to
// a tier with its own thresholds (80/50/30/15). It is deliberately kept
// separate from Engine.Classify: the two paths serve different callers and
// their tier thresholds differ.
func ScoreStructured(in StructuredInput) ClassificationResult {
	score := 0
	var criteria []string

	if in.Consciousness == Unconscious {
		score += 50
		criteria = append(criteria, "inconscience")
	}
	if in.Breathing == No {
		score += 50
		criteria = append(criteria, "absence de ventilation")
	}
	if in.Bleeding == Yes {
		score += 30
		criteria = append(criteria, "saignement")
	}
	if containsAnyKeyword(in.Symptoms, criticalSymptomKeywords) {
		score += 40
		criteria = append(criteria, "symptôme critique")
	}
	if in.Age != nil && (*in.Age > 70 || *in.Age < 2) {
		score += 15
		criteria = append(criteria, "âge à risque")
	}
	if containsAnyKeyword(in.MedicalHistory, criticalHistoryKeywords) {
		score += 10
		criteria = append(criteria, "antécédent à risque")
	}

	var tier Tier
	switch {
	case score >= 80:
		tier = TierImmediate
	case score >= 50:
		tier = TierPotential
	case score >= 30:
		tier = TierRelative
	case score >= 15:
		tier = TierMinor
	default:
		tier = TierAdvice
	}
	if len(criteria) == 0 {
		criteria = []string{"aucun critère de gravité"}
	}
	if score > 100 {
		score = 100
	}

	resource, deadline := resourceForTier(tier)
	confidence := clamp01(in.ExtractionConfidence)
	return ClassificationResult{
		Tier:                tier,
		Score:               score,
		MatchedCriteria:     criteria,
		RecommendedResource: resource,
		DeadlineMinutes:     deadline,
		Confidence:          confidence,
		EscalateToPhysician: confidence < 0.8 || tier == TierImmediate || tier == TierPotential,
	}
}

func containsAnyKeyword(entries, keywords []string) bool {
	for _, entry := range entries {
		le := strings.ToLower(entry)
		for _, kw := range keywords {
			if strings.Contains(le, kw) {
				return true
			}
		}
	}
	return false
}
