package geo

// Location is a geocoded position.
type Location struct {
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	NormalizedAddress string  `json:"normalized_address"`
	// Score is the geocoder's own match quality, when provided.
	Score float64 `json:"score,omitempty"`
}

// Facility is a medical facility able to receive or respond to a patient.
type Facility struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"` // "hospital" or "smur"
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distance_km,omitempty"`
}
