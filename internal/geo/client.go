package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/yberthe/call-triage/internal/triage"
	"github.com/yberthe/call-triage/pkg/logger"
)

// Config configures the geocoding client.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
	MaxRetries     int
	Facilities     []Facility
}

// Client resolves free-text addresses against the BAN address API and looks
// up nearby facilities from the configured roster.
type Client struct {
	baseURL    string
	httpClient *http.Client
	facilities []Facility
	maxRetries int
	logger     *logger.Logger
}

// NewClient creates a new geocoding client.
func NewClient(config Config, log *logger.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api-adresse.data.gouv.fr"
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 10
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		facilities: config.Facilities,
		maxRetries: config.MaxRetries,
		logger:     log.Named("geo-client"),
	}
}

// banResponse is the subset of the BAN geocoding payload we read.
type banResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"properties"`
	} `json:"features"`
}

// Locate geocodes a free-text address. A nil Location with a nil error means
// the geocoder found no match; callers treat that the same as any other
// missing-geolocation case.
func (c *Client) Locate(ctx context.Context, address string) (*Location, error) {
	reqURL := fmt.Sprintf("%s/search/?q=%s&limit=1", c.baseURL, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	retryDelay := 500 * time.Millisecond
	var resp *http.Response

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		if attempt == c.maxRetries-1 {
			if err != nil {
				return nil, fmt.Errorf("geocoding request failed after %d attempts: %w", c.maxRetries, err)
			}
			return nil, fmt.Errorf("unexpected status code after %d attempts: %d", c.maxRetries, resp.StatusCode)
		}

		c.logger.Warn("Retrying geocoding request",
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.maxRetries),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
			retryDelay *= 2
		}
	}
	defer resp.Body.Close()

	var payload banResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(payload.Features) == 0 || len(payload.Features[0].Geometry.Coordinates) < 2 {
		c.logger.Debug("No geocoding match", logger.String("address", address))
		return nil, nil
	}

	feature := payload.Features[0]
	loc := &Location{
		Lat:               feature.Geometry.Coordinates[1],
		Lng:               feature.Geometry.Coordinates[0],
		NormalizedAddress: feature.Properties.Label,
		Score:             feature.Properties.Score,
	}
	c.logger.Debug("Geocoded address",
		logger.String("normalized", loc.NormalizedAddress),
		logger.Float64("score", loc.Score))
	return loc, nil
}

// NearestFacilities returns the configured facilities of the given kind
// within radiusKm of the location, ordered by distance. An empty kind
// matches every facility.
func (c *Client) NearestFacilities(ctx context.Context, loc Location, radiusKm float64, kind string) ([]Facility, error) {
	var matches []Facility
	for _, f := range c.facilities {
		if kind != "" && f.Kind != kind {
			continue
		}
		d := haversineKm(loc.Lat, loc.Lng, f.Lat, f.Lng)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		f.DistanceKm = d
		matches = append(matches, f)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches, nil
}

// ETA speed bands in km/h per urgency tier.
var tierSpeedKmh = map[triage.Tier]float64{
	triage.TierImmediate: 60,
	triage.TierPotential: 50,
	triage.TierRelative:  40,
	triage.TierMinor:     30,
	triage.TierAdvice:    30,
}

// mobilization time added to every estimate, in minutes
const mobilizationMinutes = 2

// EstimateETA returns the estimated arrival time in minutes for a vehicle
// covering distanceKm at the tier's speed band, plus the fixed mobilization
// constant, rounded up.
func EstimateETA(distanceKm float64, tier triage.Tier) int {
	speed, ok := tierSpeedKmh[tier]
	if !ok {
		speed = 30
	}
	travel := distanceKm / speed * 60
	return int(math.Ceil(travel + mobilizationMinutes))
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
