// Package config holds the client configuration: where the Fitted backend
// lives, which endpoints to hit, and where local state is kept.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from JSON strings like "10s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Endpoints are the auth-sensitive paths on the backend. Paths vary by
// deployment, the contract behind them does not.
type Endpoints struct {
	Login   string `json:"login"`
	Signup  string `json:"signup"`
	Logout  string `json:"logout"`
	Refresh string `json:"refresh"`
	Me      string `json:"me"`
}

// Config is the full client configuration
type Config struct {
	BaseURL        string    `json:"baseURL"`
	StateDir       string    `json:"stateDir"`
	RequestTimeout Duration  `json:"requestTimeout"`
	RefreshTimeout Duration  `json:"refreshTimeout"`
	Endpoints      Endpoints `json:"endpoints"`
}
