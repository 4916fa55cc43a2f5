package triage

import "testing"

func TestMergeNeverErasesDefiniteValues(t *testing.T) {
	facts := NewCollectedFacts()
	facts.Merge(FactUpdate{
		Age:           intPtr(68),
		Consciousness: consciousnessPtr(Unconscious),
		Breathing:     triStatePtr(No),
	})

	// A later pass with no signal for those fields keeps them intact.
	facts.Merge(FactUpdate{City: strPtr("Lyon")})

	if facts.Age == nil || *facts.Age != 68 {
		t.Errorf("age erased by later merge: %v", facts.Age)
	}
	if facts.Consciousness != Unconscious {
		t.Errorf("consciousness = %q, want unconscious", facts.Consciousness)
	}
	if facts.Breathing != No {
		t.Errorf("breathing = %q, want no", facts.Breathing)
	}

	// An explicit unknown in an update does not downgrade either.
	facts.Merge(FactUpdate{
		Consciousness: consciousnessPtr(ConsciousnessUnknown),
		Breathing:     triStatePtr(Unknown),
	})
	if facts.Consciousness != Unconscious || facts.Breathing != No {
		t.Errorf("definite values downgraded to unknown: %q/%q", facts.Consciousness, facts.Breathing)
	}
}

func TestMergeStickyFlags(t *testing.T) {
	facts := NewCollectedFacts()
	facts.Merge(FactUpdate{PreliminaryUrgent: boolPtr(true), WitnessPresent: boolPtr(true)})
	facts.Merge(FactUpdate{})

	if !facts.PreliminaryUrgent || !facts.WitnessPresent {
		t.Error("sticky flags lost after empty merge")
	}
}

func TestComposeAddress(t *testing.T) {
	tests := []struct {
		name   string
		street string
		city   string
		postal string
		want   string
	}{
		{
			name:   "street only",
			street: "25 rue Victor Hugo",
			want:   "25 rue Victor Hugo",
		},
		{
			name:   "street plus city and postal",
			street: "25 rue Victor Hugo",
			city:   "Paris",
			postal: "75015",
			want:   "25 rue Victor Hugo, 75015, Paris",
		},
		{
			name:   "city already present in street fragment",
			street: "25 rue Victor Hugo Paris",
			city:   "Paris",
			want:   "25 rue Victor Hugo Paris",
		},
		{
			name:   "postal already present",
			street: "3 place Bellecour 69002",
			city:   "Lyon",
			postal: "69002",
			want:   "3 place Bellecour 69002, Lyon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := NewCollectedFacts()
			update := FactUpdate{StreetAddress: strPtr(tt.street)}
			if tt.city != "" {
				update.City = strPtr(tt.city)
			}
			if tt.postal != "" {
				update.PostalCode = strPtr(tt.postal)
			}
			facts.Merge(update)
			if facts.Address != tt.want {
				t.Errorf("Address = %q, want %q", facts.Address, tt.want)
			}
		})
	}
}

func TestNewStreetResetsConfirmation(t *testing.T) {
	facts := NewCollectedFacts()
	facts.Merge(FactUpdate{StreetAddress: strPtr("10 avenue des Champs")})
	facts.Merge(FactUpdate{AddressConfirmed: boolPtr(true)})
	if !facts.AddressConfirmed {
		t.Fatal("address should be confirmed")
	}

	facts.Merge(FactUpdate{StreetAddress: strPtr("12 rue de la République")})
	if facts.AddressConfirmed {
		t.Error("new street proposal should reset confirmation")
	}
}
