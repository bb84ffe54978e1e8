package config

import (
	"strings"
	"time"
)

// PlannerConfig contains model and agent loop configuration.
type PlannerConfig struct {
	// APIKey authenticates converse calls against the Anthropic API.
	APIKey string `env:"ANTHROPIC_API_KEY" envDefault:""`

	// Model is the model identifier sent with every converse call.
	Model string `env:"PLANNER_MODEL" envDefault:"claude-sonnet-4-5"`

	// MaxTokens bounds the tokens generated per model turn.
	MaxTokens int64 `env:"PLANNER_MAX_TOKENS" envDefault:"15000"`

	// Temperature controls sampling variance. Planning favors low variance.
	Temperature float64 `env:"PLANNER_TEMPERATURE" envDefault:"0.2"`

	// MaxTurns bounds the tool-use loop. A plan that has not produced a final
	// answer within this many model turns fails.
	MaxTurns int `env:"PLANNER_MAX_TURNS" envDefault:"10"`

	// HTTPMaxCalls caps http_request tool usage per run. The cap is rendered
	// into the system prompt and enforced by the tool itself.
	HTTPMaxCalls int `env:"PLANNER_HTTP_MAX_CALLS" envDefault:"8"`

	// Timeout bounds a full plan run, tool calls included.
	Timeout time.Duration `env:"PLANNER_TIMEOUT" envDefault:"10m"`
}

// Sanitize applies guardrails to planner configuration values.
func (p *PlannerConfig) Sanitize() {
	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.Model = strings.TrimSpace(p.Model); p.Model == "" {
		p.Model = "claude-sonnet-4-5"
	}

	if p.MaxTokens < 1 {
		p.MaxTokens = 1
	}
	if p.MaxTokens > 64000 {
		p.MaxTokens = 64000
	}

	if p.Temperature < 0 {
		p.Temperature = 0
	}
	if p.Temperature > 1 {
		p.Temperature = 1
	}

	if p.MaxTurns < 1 {
		p.MaxTurns = 1
	}
	if p.MaxTurns > 50 {
		p.MaxTurns = 50
	}

	if p.HTTPMaxCalls < 1 {
		p.HTTPMaxCalls = 1
	}
	if p.HTTPMaxCalls > 64 {
		p.HTTPMaxCalls = 64
	}

	if p.Timeout < 30*time.Second {
		p.Timeout = 30 * time.Second
	}
	if p.Timeout > 30*time.Minute {
		p.Timeout = 30 * time.Minute
	}
}
