/*
Package configs loads the relay's settings from environment variables.

Every setting has a default suitable for local development; LoadConfig validates
the values and reports the first problem it finds.
*/
package configs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// AppConfig holds all runtime settings.
type AppConfig struct {
	// Environment is "development" or anything else (treated as production).
	Environment string
	Port        int
	LogLevel    string

	// AllowedOrigins lists browser origins permitted to open WebSockets and call
	// the JSON API. Ignored in development, where every origin is allowed.
	AllowedOrigins []string

	// PowDifficulty is the proof-of-work difficulty; 0 disables the gate.
	PowDifficulty int

	// PublicDir holds static client files served at "/". Empty disables serving.
	PublicDir string

	// MapBaseURL prefixes shared locations: "{MapBaseURL}?q={lat},{lon}".
	MapBaseURL string

	// ProfanityFilter enables rejection of profane text messages.
	ProfanityFilter bool
}

// IsDevelopment reports whether the relay runs in development mode.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (*AppConfig, error) {
	return Load(os.LookupEnv)
}

// Load reads the configuration through lookup, which has the signature of
// os.LookupEnv.
func Load(lookup func(string) (string, bool)) (*AppConfig, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &AppConfig{
		Environment: get("ENVIRONMENT", "development"),
		LogLevel:    get("LOG_LEVEL", ""),
		PublicDir:   get("PUBLIC_DIR", "public"),
		MapBaseURL:  get("MAP_BASE_URL", "https://google.com/maps"),
	}

	port, err := strconv.Atoi(get("PORT", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port %d is outside the unprivileged range 1024-65535", port)
	}
	cfg.Port = port

	difficulty, err := strconv.Atoi(get("POW_DIFFICULTY", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid POW_DIFFICULTY environment variable: %w", err)
	}
	if difficulty < 0 || difficulty > 8 {
		return nil, fmt.Errorf("POW_DIFFICULTY %d must be between 0 and 8", difficulty)
	}
	cfg.PowDifficulty = difficulty

	cfg.ProfanityFilter, err = strconv.ParseBool(get("PROFANITY_FILTER", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROFANITY_FILTER environment variable: %w", err)
	}

	u, err := url.Parse(cfg.MapBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("MAP_BASE_URL %q must be an absolute http(s) URL", cfg.MapBaseURL)
	}

	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(get("ALLOWED_ORIGINS", ""), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}
	if !cfg.IsDevelopment() && len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("ALLOWED_ORIGINS is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}
