package triage

import (
	"strings"
	"testing"

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

func TestExtractCriticalKeywords(t *testing.T) {
	e := NewExtractor(testLogger(t))

	tests := []struct {
		utterance string
		urgent    bool
	}{
		{"il ne respire plus", true},
		{"elle est inconsciente", true},
		{"mon fils convulse", true},
		{"il y a une hémorragie", true},
		{"elle est toute bleue", true},
		{"j'ai mal au pied", false},
		{"tout va bien maintenant", false},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			update := e.Extract(tt.utterance, NewCollectedFacts())
			got := update.PreliminaryUrgent != nil && *update.PreliminaryUrgent
			if got != tt.urgent {
				t.Errorf("preliminaryUrgent = %v, want %v", got, tt.urgent)
			}
		})
	}
}

func TestExtractVitalEmergencyRoundTrip(t *testing.T) {
	e := NewExtractor(testLogger(t))
	facts := NewCollectedFacts()

	update := e.Extract("25 rue Victor Hugo, Paris 15ème, mon mari ne bouge plus", facts)
	facts.Merge(update)

	if !facts.PreliminaryUrgent {
		t.Error("expected preliminaryUrgent = true")
	}
	if !strings.HasPrefix(facts.Address, "25 rue Victor Hugo") {
		t.Errorf("address = %q, want prefix %q", facts.Address, "25 rue Victor Hugo")
	}
	if facts.Consciousness != Unconscious {
		t.Errorf("consciousness = %q, want unconscious", facts.Consciousness)
	}
	if !facts.WitnessPresent {
		t.Error("third-person report should mark a witness present")
	}
	if facts.Gender != GenderMale {
		t.Errorf("gender = %q, want male", facts.Gender)
	}
}

func TestExtractAddress(t *testing.T) {
	e := NewExtractor(testLogger(t))

	tests := []struct {
		name      string
		utterance string
		want      string // empty means no address expected
	}{
		{
			name:      "house number and street",
			utterance: "j'habite au 10 avenue des Champs",
			want:      "10 avenue des Champs",
		},
		{
			name:      "bis suffix",
			utterance: "c'est au 4 bis rue des Lilas",
			want:      "4 bis rue des Lilas",
		},
		{
			name:      "stop word truncation",
			utterance: "12 boulevard Voltaire je vous attends",
			want:      "12 boulevard Voltaire",
		},
		{
			name:      "symptom stop word truncation",
			utterance: "35 rue Nationale mal partout",
			want:      "35 rue Nationale",
		},
		{
			name:      "punctuation bound",
			utterance: "9 quai de la Loire. Venez vite",
			want:      "9 quai de la Loire",
		},
		{
			name:      "too short is discarded",
			utterance: "rue A",
			want:      "",
		},
		{
			name:      "no street reference",
			utterance: "mon mari est tombé dans l'escalier",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := e.Extract(tt.utterance, NewCollectedFacts())
			got := ""
			if update.StreetAddress != nil {
				got = *update.StreetAddress
			}
			if got != tt.want {
				t.Errorf("street = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAddressConfirmation(t *testing.T) {
	e := NewExtractor(testLogger(t))
	facts := NewCollectedFacts()

	facts.Merge(e.Extract("10 avenue des Champs", facts))
	if facts.AddressConfirmed {
		t.Fatal("address should start unconfirmed")
	}

	facts.Merge(e.Extract("c'est bien ça", facts))
	if !facts.AddressConfirmed {
		t.Error("confirmation keyword should confirm the proposed address")
	}
}

func TestExtractCityAndPostal(t *testing.T) {
	e := NewExtractor(testLogger(t))

	update := e.Extract("on est à Marseille, le code postal c'est 13008", NewCollectedFacts())
	if update.City == nil || *update.City != "Marseille" {
		t.Errorf("city = %v, want Marseille", update.City)
	}
	if update.PostalCode == nil || *update.PostalCode != "13008" {
		t.Errorf("postal = %v, want 13008", update.PostalCode)
	}

	update = e.Extract("Paris 11ème", NewCollectedFacts())
	if update.City == nil || *update.City != "Paris 11ème" {
		t.Errorf("city = %v, want Paris 11ème", update.City)
	}
}

func TestExtractConsciousnessPriority(t *testing.T) {
	e := NewExtractor(testLogger(t))

	tests := []struct {
		utterance string
		want      Consciousness
	}{
		{"il est conscient et il me parle", Conscious},
		{"elle est inconsciente", Unconscious},
		{"il ne répond pas quand je lui parle", Unconscious},
		{"elle est complètement désorientée", Confused},
		{"il a mal au bras", ConsciousnessUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			update := e.Extract(tt.utterance, NewCollectedFacts())
			got := ConsciousnessUnknown
			if update.Consciousness != nil {
				got = *update.Consciousness
			}
			if got != tt.want {
				t.Errorf("consciousness = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAge(t *testing.T) {
	e := NewExtractor(testLogger(t))

	update := e.Extract("il a 72 ans", NewCollectedFacts())
	if update.Age == nil || *update.Age != 72 {
		t.Errorf("age = %v, want 72", update.Age)
	}

	update = e.Extract("elle a 8 mois", NewCollectedFacts())
	if update.Age != nil {
		t.Errorf("age = %v, want nil for non-year phrasing", update.Age)
	}
}

func TestExtractSymptomsAndMeasures(t *testing.T) {
	e := NewExtractor(testLogger(t))

	update := e.Extract("il a mal à la poitrine depuis 2 heures et il est très pâle", NewCollectedFacts())
	if !hasTag(update.Symptoms, SymptomChestPain) {
		t.Error("expected chest pain tag")
	}
	if !hasTag(update.Symptoms, SymptomShockSigns) {
		t.Error("expected shock signs tag")
	}
	if update.SymptomDurationHours == nil || *update.SymptomDurationHours != 2 {
		t.Errorf("duration = %v, want 2", update.SymptomDurationHours)
	}

	update = e.Extract("il a fait une chute de 5 mètres", NewCollectedFacts())
	if update.FallHeightMeters == nil || *update.FallHeightMeters != 5 {
		t.Errorf("fall height = %v, want 5", update.FallHeightMeters)
	}
	if !hasTag(update.Symptoms, SymptomHighFall) {
		t.Error("expected high-fall tag for a fall over 3 meters")
	}
}

func hasTag(tags []string, tag string) bool {
	for _, s := range tags {
		if s == tag {
			return true
		}
	}
	return false
}
