// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings. Every field comes from a GRIDRL_*
// environment variable.
type Config struct {
	Addr        string        // GRIDRL_ADDR
	RedisURL    string        // GRIDRL_REDIS_URL; empty disables the step stream
	DatabaseURL string        // GRIDRL_DATABASE_URL; empty disables episode storage
	JWTSecret   string        // GRIDRL_JWT_SECRET
	LogLevel    string        // GRIDRL_LOG_LEVEL
	LogFormat   string        // GRIDRL_LOG_FORMAT: text or json
	ScenarioDir string        // GRIDRL_SCENARIO_DIR; extra YAML scenarios
	MaxSessions int           // GRIDRL_MAX_SESSIONS
	TokenTTL    time.Duration // GRIDRL_TOKEN_TTL
}

// Default returns the settings used when a variable is unset.
func Default() Config {
	return Config{
		Addr:        ":8080",
		LogLevel:    "info",
		LogFormat:   "text",
		MaxSessions: 64,
		TokenTTL:    24 * time.Hour,
	}
}

// Load reads the given dotenv files, skipping ones that do not exist, and
// then the process environment. Process variables win over file entries.
func Load(files ...string) (Config, error) {
	fileVars := map[string]string{}
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", f, err)
		}
		for k, v := range vars {
			if _, seen := fileVars[k]; !seen {
				fileVars[k] = v
			}
		}
	}
	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	})
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("GRIDRL_ADDR", &cfg.Addr)
	str("GRIDRL_REDIS_URL", &cfg.RedisURL)
	str("GRIDRL_DATABASE_URL", &cfg.DatabaseURL)
	str("GRIDRL_JWT_SECRET", &cfg.JWTSecret)
	str("GRIDRL_LOG_LEVEL", &cfg.LogLevel)
	str("GRIDRL_LOG_FORMAT", &cfg.LogFormat)
	str("GRIDRL_SCENARIO_DIR", &cfg.ScenarioDir)

	if v, ok := lookup("GRIDRL_MAX_SESSIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: GRIDRL_MAX_SESSIONS=%q must be a positive integer", v)
		}
		cfg.MaxSessions = n
	}
	if v, ok := lookup("GRIDRL_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: GRIDRL_TOKEN_TTL=%q must be a positive duration", v)
		}
		cfg.TokenTTL = d
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("config: GRIDRL_JWT_SECRET is required")
	}
	return cfg, nil
}
