package config

import (
	"strings"
	"time"
)

// GatewayConfig contains tool gateway connection and credential configuration.
//
// The gateway exposes remote tools over MCP (streamable HTTP). Calls carry a
// bearer token minted through the OAuth2 client-credentials grant; for local
// development a static token can be injected instead.
type GatewayConfig struct {
	// URL is the MCP endpoint of the tool gateway. Empty disables remote
	// tools; the planner runs with the built-in local tool set only.
	URL string `env:"GATEWAY_URL" envDefault:""`

	// IssuerURL is the OIDC issuer used to discover the token endpoint.
	// Ignored when TokenURL is set explicitly.
	IssuerURL string `env:"GATEWAY_ISSUER_URL" envDefault:""`

	// TokenURL is the OAuth2 token endpoint for the client-credentials grant.
	// Takes precedence over issuer discovery.
	TokenURL string `env:"GATEWAY_TOKEN_URL" envDefault:""`

	// ClientID and ClientSecret identify this service to the token endpoint.
	ClientID     string `env:"GATEWAY_CLIENT_ID"     envDefault:""`
	ClientSecret string `env:"GATEWAY_CLIENT_SECRET" envDefault:""`

	// Scope is the optional space-delimited scope requested at mint time.
	Scope string `env:"GATEWAY_SCOPE" envDefault:""`

	// StaticAccessToken bypasses minting entirely when set (local development
	// escape hatch).
	StaticAccessToken string `env:"GATEWAY_ACCESS_TOKEN" envDefault:""`

	// MintTimeout bounds a single token mint round-trip.
	MintTimeout time.Duration `env:"GATEWAY_TOKEN_TIMEOUT" envDefault:"10s"`

	// ExpiryMargin is subtracted from a minted token's lifetime so the cached
	// token is retired before the issuer actually rejects it.
	ExpiryMargin time.Duration `env:"GATEWAY_TOKEN_EXPIRY_MARGIN" envDefault:"30s"`

	// DefaultTokenLifetime is assumed when the token response omits expires_in.
	DefaultTokenLifetime time.Duration `env:"GATEWAY_TOKEN_DEFAULT_LIFETIME" envDefault:"5m"`

	// DiscoveryCacheTTL is how long discovered tool descriptors stay cached
	// in Redis. Zero disables the descriptor cache.
	DiscoveryCacheTTL time.Duration `env:"GATEWAY_DISCOVERY_CACHE_TTL" envDefault:"5m"`

	// CallTimeout bounds one gateway round-trip, session setup included.
	CallTimeout time.Duration `env:"GATEWAY_CALL_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to gateway configuration values.
func (g *GatewayConfig) Sanitize() {
	g.URL = strings.TrimSpace(g.URL)
	g.IssuerURL = strings.TrimSpace(g.IssuerURL)
	g.TokenURL = strings.TrimSpace(g.TokenURL)
	g.ClientID = strings.TrimSpace(g.ClientID)
	g.Scope = strings.TrimSpace(g.Scope)
	g.StaticAccessToken = strings.TrimSpace(g.StaticAccessToken)

	if g.MintTimeout <= 0 {
		g.MintTimeout = 10 * time.Second
	}
	if g.ExpiryMargin < 0 {
		g.ExpiryMargin = 0
	}
	if g.DefaultTokenLifetime <= 0 {
		g.DefaultTokenLifetime = 5 * time.Minute
	}
	// A margin at or above the assumed lifetime would expire every token at
	// mint time.
	if g.ExpiryMargin >= g.DefaultTokenLifetime {
		g.ExpiryMargin = g.DefaultTokenLifetime / 2
	}
	if g.DiscoveryCacheTTL < 0 {
		g.DiscoveryCacheTTL = 0
	}
	if g.CallTimeout <= 0 {
		g.CallTimeout = 60 * time.Second
	}
}

// HasStaticToken reports whether the static development token is configured.
func (g *GatewayConfig) HasStaticToken() bool {
	return g.StaticAccessToken != ""
}

// HasClientCredentials reports whether enough configuration exists to mint
// tokens: a client id plus either an explicit token endpoint or an issuer to
// discover one from.
func (g *GatewayConfig) HasClientCredentials() bool {
	return g.ClientID != "" && (g.TokenURL != "" || g.IssuerURL != "")
}
