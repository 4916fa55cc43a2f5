package triage

import "strings"

// Gender is the patient gender category.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Consciousness is the patient consciousness state.
type Consciousness string

const (
	Conscious            Consciousness = "conscious"
	Unconscious          Consciousness = "unconscious"
	Confused             Consciousness = "confused"
	ConsciousnessUnknown Consciousness = "unknown"
)

// TriState is a yes/no/unknown flag for vitals that may not have been
// reported yet.
type TriState string

const (
	Yes     TriState = "yes"
	No      TriState = "no"
	Unknown TriState = "unknown"
)

// Canonical symptom tags produced by the extractor and consumed by the
// classifier. Free text from the caller is normalized to these values.
const (
	SymptomChestPain     = "douleur thoracique"
	SymptomAbdominalPain = "douleur abdominale"
	SymptomFever         = "fièvre"
	SymptomStroke        = "suspicion AVC"
	SymptomConvulsions   = "convulsions"
	SymptomMassiveBleed  = "hémorragie massive"
	SymptomChoking       = "obstruction des voies aériennes"
	SymptomRoadAccident  = "accident de la route"
	SymptomHighFall      = "chute de grande hauteur"
	SymptomShockSigns    = "signes de choc"
)

// CollectedFacts accumulates everything learned about a call. Fields only
// move from unknown to a definite value; a later extraction that found no
// signal for a field never erases it (see Merge).
type CollectedFacts struct {
	Age                  *int          `json:"age,omitempty"`
	Gender               Gender        `json:"gender"`
	Symptoms             []string      `json:"symptoms,omitempty"`
	Consciousness        Consciousness `json:"consciousness"`
	Breathing            TriState      `json:"breathing"`
	Bleeding             TriState      `json:"bleeding"`
	StreetAddress        string        `json:"street_address,omitempty"`
	City                 string        `json:"city,omitempty"`
	PostalCode           string        `json:"postal_code,omitempty"`
	Address              string        `json:"address,omitempty"` // composed, normalized
	AddressConfirmed     bool          `json:"address_confirmed"`
	PreliminaryUrgent    bool          `json:"preliminary_urgent"`
	WitnessPresent       bool          `json:"witness_present"`
	SymptomDurationHours *float64      `json:"symptom_duration_hours,omitempty"`
	FallHeightMeters     *float64      `json:"fall_height_meters,omitempty"`
	MedicalHistory       []string      `json:"medical_history,omitempty"`
}

// NewCollectedFacts returns facts with all tri-state fields at unknown.
func NewCollectedFacts() CollectedFacts {
	return CollectedFacts{
		Gender:        GenderUnknown,
		Consciousness: ConsciousnessUnknown,
		Breathing:     Unknown,
		Bleeding:      Unknown,
	}
}

// FactUpdate is a partial update produced by a single extraction pass.
// Nil fields were not derived this turn and leave the prior value intact.
type FactUpdate struct {
	Age                  *int
	Gender               *Gender
	Symptoms             []string
	Consciousness        *Consciousness
	Breathing            *TriState
	Bleeding             *TriState
	StreetAddress        *string
	City                 *string
	PostalCode           *string
	AddressConfirmed     *bool
	PreliminaryUrgent    *bool
	WitnessPresent       *bool
	SymptomDurationHours *float64
	FallHeightMeters     *float64
}

// IsEmpty reports whether the update carries no derived fields.
func (u FactUpdate) IsEmpty() bool {
	return u.Age == nil && u.Gender == nil && len(u.Symptoms) == 0 &&
		u.Consciousness == nil && u.Breathing == nil && u.Bleeding == nil &&
		u.StreetAddress == nil && u.City == nil && u.PostalCode == nil &&
		u.AddressConfirmed == nil && u.PreliminaryUrgent == nil &&
		u.WitnessPresent == nil && u.SymptomDurationHours == nil &&
		u.FallHeightMeters == nil
}

// Merge applies a partial update to the facts. A field is overwritten only
// when the update supplies an explicit new value; absence of a signal keeps
// the previously collected value. PreliminaryUrgent and WitnessPresent are
// sticky: once true they stay true.
func (f *CollectedFacts) Merge(u FactUpdate) {
	if u.Age != nil {
		f.Age = u.Age
	}
	if u.Gender != nil && *u.Gender != GenderUnknown {
		f.Gender = *u.Gender
	}
	for _, s := range u.Symptoms {
		f.addSymptom(s)
	}
	if u.Consciousness != nil && *u.Consciousness != ConsciousnessUnknown {
		f.Consciousness = *u.Consciousness
	}
	if u.Breathing != nil && *u.Breathing != Unknown {
		f.Breathing = *u.Breathing
	}
	if u.Bleeding != nil && *u.Bleeding != Unknown {
		f.Bleeding = *u.Bleeding
	}
	if u.StreetAddress != nil && *u.StreetAddress != "" {
		f.StreetAddress = *u.StreetAddress
		// A freshly proposed street resets confirmation until the caller
		// acknowledges it.
		if u.AddressConfirmed == nil {
			f.AddressConfirmed = false
		}
	}
	if u.City != nil && *u.City != "" {
		f.City = *u.City
	}
	if u.PostalCode != nil && *u.PostalCode != "" {
		f.PostalCode = *u.PostalCode
	}
	if u.AddressConfirmed != nil {
		f.AddressConfirmed = *u.AddressConfirmed
	}
	if u.PreliminaryUrgent != nil && *u.PreliminaryUrgent {
		f.PreliminaryUrgent = true
	}
	if u.WitnessPresent != nil && *u.WitnessPresent {
		f.WitnessPresent = true
	}
	if u.SymptomDurationHours != nil {
		f.SymptomDurationHours = u.SymptomDurationHours
	}
	if u.FallHeightMeters != nil {
		f.FallHeightMeters = u.FallHeightMeters
	}
	f.composeAddress()
}

// addSymptom appends a symptom tag if not already present.
func (f *CollectedFacts) addSymptom(tag string) {
	for _, s := range f.Symptoms {
		if s == tag {
			return
		}
	}
	f.Symptoms = append(f.Symptoms, tag)
}

// HasSymptom reports whether the given canonical tag has been collected.
func (f *CollectedFacts) HasSymptom(tag string) bool {
	for _, s := range f.Symptoms {
		if s == tag {
			return true
		}
	}
	return false
}

// composeAddress joins the street fragment with postal code and city,
// appending each only if not already textually present in the street
// fragment (case-insensitive whole-word check).
func (f *CollectedFacts) composeAddress() {
	if f.StreetAddress == "" {
		return
	}
	addr := f.StreetAddress
	if f.PostalCode != "" && !containsWord(addr, f.PostalCode) {
		addr += ", " + f.PostalCode
	}
	if f.City != "" && !containsWord(addr, f.City) {
		addr += ", " + f.City
	}
	f.Address = addr
}

// containsWord reports whether word occurs in s as a whole word,
// case-insensitively.
func containsWord(s, word string) bool {
	ls := strings.ToLower(s)
	lw := strings.ToLower(word)
	idx := 0
	for {
		i := strings.Index(ls[idx:], lw)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || isWordBoundary(ls[i-1])
		end := i + len(lw)
		after := end == len(ls) || isWordBoundary(ls[end])
		if before && after {
			return true
		}
		idx = i + 1
	}
}

func isWordBoundary(b byte) bool {
	return !(b >= 'a' && b <= 'z' || b >= '0' && b <= '9')
}
