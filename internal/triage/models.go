package triage

// Tier represents the urgency level assigned to a call, most severe first.
type Tier string

const (
	TierImmediate Tier = "P0" // immediate life threat
	TierPotential Tier = "P1" // potential life threat
	TierRelative  Tier = "P2" // relative urgency
	TierMinor     Tier = "P3" // minor
	TierAdvice    Tier = "P4" // advice only
)

// severity orders tiers for comparison (lower is more severe)
var severityRank = map[Tier]int{
	TierImmediate: 0,
	TierPotential: 1,
	TierRelative:  2,
	TierMinor:     3,
	TierAdvice:    4,
}

// MoreSevereThan reports whether t is strictly more severe than other.
func (t Tier) MoreSevereThan(other Tier) bool {
	return severityRank[t] < severityRank[other]
}

// ClassificationResult is the output of a classification run. It is rebuilt
// from scratch on every run because facts can be revised between utterances.
type ClassificationResult struct {
	Tier                Tier     `json:"tier"`
	Score               int      `json:"score"` // 0-100
	MatchedCriteria     []string `json:"matched_criteria"`
	RecommendedResource string   `json:"recommended_resource"`
	// DeadlineMinutes is the maximum response deadline. 0 means dispatch
	// now; -1 means no deadline (no dispatch recommended).
	DeadlineMinutes     int     `json:"deadline_minutes"`
	Confidence          float64 `json:"confidence"` // 0.0-1.0
	EscalateToPhysician bool    `json:"escalate_to_physician"`
}

// resourceForTier maps a tier to the recommended resource and response
// deadline in minutes.
func resourceForTier(t Tier) (string, int) {
	switch t {
	case TierImmediate:
		return "SMUR + ambulance", 0
	case TierPotential:
		return "SMUR", 20
	case TierRelative:
		return "ambulance", 60
	default:
		return "conseil médical", -1
	}
}
