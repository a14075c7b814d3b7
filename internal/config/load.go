package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fittedhq/fitted-go/internal/log"
)

// Default returns the configuration used when no config file is given.
// FITTED_API_URL overrides the backend location, matching how the web
// client picks up its API base URL from the environment.
func Default() Config {
	baseURL := os.Getenv("FITTED_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	stateDir := os.Getenv("FITTED_STATE_DIR")
	if stateDir == "" {
		if configDir, err := os.UserConfigDir(); err == nil {
			stateDir = filepath.Join(configDir, "fitted")
		} else {
			stateDir = ".fitted"
		}
	}

	return Config{
		BaseURL:        baseURL,
		StateDir:       stateDir,
		RequestTimeout: Duration(30 * time.Second),
		RefreshTimeout: Duration(10 * time.Second),
		Endpoints: Endpoints{
			Login:   "/api/v1/auth/login",
			Signup:  "/api/v1/auth/signup",
			Logout:  "/api/v1/auth/logout",
			Refresh: "/api/v1/auth/refresh",
			Me:      "/api/v1/auth/me",
		},
	}
}

// Load reads a JSON config file layered over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config JSON: %w", err)
		}
		log.LogDebugWithFields("config", "Loaded config file", map[string]any{
			"path": path,
		})
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for the mistakes that otherwise surface as
// confusing network errors later.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("baseURL must be http or https, got %q", cfg.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("baseURL is missing a host: %q", cfg.BaseURL)
	}

	endpoints := map[string]string{
		"login":   cfg.Endpoints.Login,
		"signup":  cfg.Endpoints.Signup,
		"logout":  cfg.Endpoints.Logout,
		"refresh": cfg.Endpoints.Refresh,
		"me":      cfg.Endpoints.Me,
	}
	for name, path := range endpoints {
		if path == "" {
			return fmt.Errorf("endpoint %s is required", name)
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("endpoint %s must start with /, got %q", name, path)
		}
	}

	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive")
	}
	if cfg.RefreshTimeout <= 0 {
		return fmt.Errorf("refreshTimeout must be positive")
	}

	return nil
}
