package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/yberthe/call-triage/internal/geo"
)

// Config is the top-level application configuration, loaded from TOML.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Geocoding GeocodingConfig `toml:"geocoding"`
	Storage   StorageConfig   `toml:"storage"`
	Triage    TriageConfig    `toml:"triage"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, console
}

// OpenAIConfig represents the reply generator configuration
type OpenAIConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	SummaryModel   string  `toml:"summary_model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

// GeocodingConfig represents the geocoder and facility roster configuration
type GeocodingConfig struct {
	BaseURL        string         `toml:"base_url"`
	TimeoutSeconds int            `toml:"timeout_seconds"`
	MaxRetries     int            `toml:"max_retries"`
	SearchRadiusKm float64        `toml:"search_radius_km"`
	FacilityKind   string         `toml:"facility_kind"`
	Facilities     []geo.Facility `toml:"facilities"`
}

// StorageConfig represents the persistence configuration
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

// TriageConfig represents the orchestration thresholds
type TriageConfig struct {
	MinMessagesForClassification int `toml:"min_messages_for_classification"`
	FullSummaryThreshold         int `toml:"full_summary_threshold"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 30,
			MaxTokens:      200,
			Temperature:    0.4,
		},
		Geocoding: GeocodingConfig{
			BaseURL:        "https://api-adresse.data.gouv.fr",
			TimeoutSeconds: 10,
			MaxRetries:     3,
			SearchRadiusKm: 50,
			FacilityKind:   "hospital",
		},
		Storage: StorageConfig{
			SQLitePath: "call-triage.db",
		},
		Triage: TriageConfig{
			MinMessagesForClassification: 2,
			FullSummaryThreshold:         4,
		},
	}
}

// Load reads the configuration file at path, applying defaults for any
// missing section. The OPENAI_API_KEY environment variable overrides the
// configured key.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
			// A missing file at the default path just means defaults.
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	return cfg, nil
}
