package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

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

func TestEstimateETA(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		tier       triage.Tier
		want       int
	}{
		{"immediate 10km at 60km/h", 10, triage.TierImmediate, 12},
		{"potential 10km at 50km/h", 10, triage.TierPotential, 14},
		{"relative 10km at 40km/h", 10, triage.TierRelative, 17},
		{"minor 10km at 30km/h", 10, triage.TierMinor, 22},
		{"advice shares the slowest band", 10, triage.TierAdvice, 22},
		{"fractional travel rounds up", 1, triage.TierImmediate, 3},
		{"zero distance keeps the mobilization floor", 0, triage.TierImmediate, 2},
		{"unknown tier falls back to 30km/h", 10, triage.Tier("P9"), 22},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateETA(tc.distanceKm, tc.tier); got != tc.want {
				t.Errorf("EstimateETA(%v, %s) = %d, want %d", tc.distanceKm, tc.tier, got, tc.want)
			}
		})
	}
}

func TestNearestFacilities(t *testing.T) {
	// Reference point: central Paris.
	origin := Location{Lat: 48.8566, Lng: 2.3522}
	client := NewClient(Config{
		Facilities: []Facility{
			{ID: "f-lyon", Name: "CHU Lyon", Kind: "hospital", Lat: 45.7640, Lng: 4.8357},
			{ID: "f-necker", Name: "Hôpital Necker", Kind: "hospital", Lat: 48.8460, Lng: 2.3160},
			{ID: "f-pharma", Name: "Pharmacie de garde", Kind: "pharmacy", Lat: 48.8570, Lng: 2.3530},
			{ID: "f-pitie", Name: "Pitié-Salpêtrière", Kind: "hospital", Lat: 48.8380, Lng: 2.3650},
		},
	}, testLogger(t))

	got, err := client.NearestFacilities(context.Background(), origin, 50, "hospital")
	if err != nil {
		t.Fatalf("NearestFacilities returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d facilities, want 2 hospitals within 50km", len(got))
	}
	// Lyon is ~390km out, the pharmacy has the wrong kind.
	if got[0].ID != "f-pitie" && got[0].ID != "f-necker" {
		t.Fatalf("unexpected nearest facility %q", got[0].ID)
	}
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Errorf("facilities not sorted by distance: %v then %v", got[0].DistanceKm, got[1].DistanceKm)
	}
	for _, f := range got {
		if f.DistanceKm <= 0 || f.DistanceKm > 50 {
			t.Errorf("facility %s distance %v outside (0, 50]", f.ID, f.DistanceKm)
		}
	}

	// Empty kind matches everything in range.
	all, err := client.NearestFacilities(context.Background(), origin, 50, "")
	if err != nil {
		t.Fatalf("NearestFacilities returned error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d facilities with empty kind, want 3", len(all))
	}
	if all[0].ID != "f-pharma" {
		t.Errorf("nearest = %q, want the pharmacy next door", all[0].ID)
	}
}

func TestLocate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "25 rue Victor Hugo, Paris" {
			t.Errorf("query q = %q, want the raw address", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("query limit = %q, want 1", got)
		}
		fmt.Fprint(w, `{
			"features": [{
				"geometry": {"coordinates": [2.2876, 48.8924]},
				"properties": {"label": "25 Rue Victor Hugo 75016 Paris", "score": 0.93}
			}]
		}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxRetries: 1}, testLogger(t))
	loc, err := client.Locate(context.Background(), "25 rue Victor Hugo, Paris")
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if loc == nil {
		t.Fatal("Locate returned nil location for a matching address")
	}
	if loc.Lat != 48.8924 || loc.Lng != 2.2876 {
		t.Errorf("coordinates = (%v, %v), want (48.8924, 2.2876)", loc.Lat, loc.Lng)
	}
	if loc.NormalizedAddress != "25 Rue Victor Hugo 75016 Paris" {
		t.Errorf("normalized address = %q", loc.NormalizedAddress)
	}
	if loc.Score != 0.93 {
		t.Errorf("score = %v, want 0.93", loc.Score)
	}
}

func TestLocateNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features": []}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxRetries: 1}, testLogger(t))
	loc, err := client.Locate(context.Background(), "xyzzy")
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if loc != nil {
		t.Errorf("Locate = %+v, want nil for an unmatched address", loc)
	}
}

func TestLocateRetriesOnServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{
			"features": [{
				"geometry": {"coordinates": [2.35, 48.85]},
				"properties": {"label": "Paris", "score": 0.5}
			}]
		}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxRetries: 3}, testLogger(t))
	loc, err := client.Locate(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("Locate returned error after retry: %v", err)
	}
	if loc == nil || loc.NormalizedAddress != "Paris" {
		t.Errorf("location = %+v, want the retried match", loc)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
}
