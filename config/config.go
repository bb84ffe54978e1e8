package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
//   - gateway.go: Tool gateway and credential configuration
//   - planner.go: Planner model and agent loop configuration
//   - services.go: Service mode and janitor configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed guards).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Tool gateway and credential configuration
	Gateway GatewayConfig

	// Planner configuration
	Planner PlannerConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Janitor configuration
	Janitor JanitorConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Gateway.Sanitize()
	c.Planner.Sanitize()
	c.Janitor.Sanitize()
	c.Observability.Sanitize()

	// A job still inside its plan window is not stale.
	if c.Janitor.RunningMaxAge < 2*c.Planner.Timeout {
		c.Janitor.RunningMaxAge = 2 * c.Planner.Timeout
	}

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsJanitorEnabled returns true if the stale-job janitor service is enabled.
func (c *AppConfig) IsJanitorEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeJanitor]
}
