package sqlite

import "time"

// ReportRecord is a persisted triage report row. It mirrors the
// triage_reports table schema.
type ReportRecord struct {
	ID                 string    `json:"id"`
	CallID             string    `json:"call_id"`
	Tier               string    `json:"tier"`
	Score              int       `json:"score"`
	Summary            string    `json:"summary"`
	Confidence         float64   `json:"confidence"`
	MatchedCriteria    []string  `json:"matched_criteria"`
	IsPartial          bool      `json:"is_partial"`
	FacilityName       string    `json:"facility_name,omitempty"`
	FacilityDistanceKm float64   `json:"facility_distance_km,omitempty"`
	ETAMinutes         int       `json:"eta_minutes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
