package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeJanitor runs the stale-job janitor.
	ServiceModeJanitor ServiceMode = "janitor"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeJanitor,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeJanitor:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, janitor)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// JanitorConfig contains stale-job janitor configuration.
//
// A process that dies between job creation and completion leaves the job
// RUNNING forever and its pollers spinning. The janitor fails such jobs once
// they have gone without a progress write for longer than RunningMaxAge.
type JanitorConfig struct {
	// Interval is the janitor tick interval.
	Interval time.Duration `env:"JANITOR_INTERVAL" envDefault:"5m"`

	// RunningMaxAge is how long a RUNNING job may go without an update before
	// it is marked FAILED.
	RunningMaxAge time.Duration `env:"JANITOR_RUNNING_MAX_AGE" envDefault:"30m"`

	// BatchSize is the maximum number of rows to fail per tick.
	// Batching prevents long locks on large tables.
	BatchSize int `env:"JANITOR_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to janitor configuration values.
func (j *JanitorConfig) Sanitize() {
	// Enforce a minimum interval to prevent excessive database load
	if j.Interval < 1*time.Minute {
		j.Interval = 1 * time.Minute
	}
	if j.RunningMaxAge < 5*time.Minute {
		j.RunningMaxAge = 5 * time.Minute
	}

	if j.BatchSize < 1 {
		j.BatchSize = 1
	}
	if j.BatchSize > 10000 {
		j.BatchSize = 10000
	}
}
