// Package gatewayauth provides credential sources for the tool gateway.
package gatewayauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/wayfinderhq/wayfinder/internal/observability/metrics"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
)

// StaticSource serves a fixed access token. An empty token is the anonymous
// source: callers that receive an empty credential degrade to local tools.
type StaticSource struct {
	token string
}

// NewStaticSource creates a credential source that always returns token.
func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: token}
}

// Token returns the configured token.
func (s *StaticSource) Token(_ context.Context) (string, error) {
	return s.token, nil
}

// SourceConfig holds configuration for the minting credential source.
type SourceConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string

	// TokenURL is used directly when set; otherwise the token endpoint is
	// discovered from IssuerURL.
	TokenURL  string
	IssuerURL string

	MintTimeout          time.Duration
	ExpiryMargin         time.Duration
	DefaultTokenLifetime time.Duration

	Logger     *slog.Logger
	Metrics    statsd.Sink  // Optional: metrics sink (StatsD-compatible)
	HTTPClient *http.Client // Optional, defaults to a 30s-timeout client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// MintingSource mints gateway access tokens through the OAuth2
// client-credentials grant and caches them until shortly before expiry.
//
// Minting is best effort: a failed mint surfaces as an absent credential
// rather than an error, so a flaky issuer degrades tool discovery instead of
// failing planning runs.
type MintingSource struct {
	cfg        SourceConfig
	logger     *slog.Logger
	metrics    statsd.Sink
	httpClient *http.Client

	group singleflight.Group
	now   func() time.Time

	mu       sync.Mutex
	token    string
	retireAt time.Time
	tokenURL string
}

// NewMintingSource creates a minting credential source.
func NewMintingSource(cfg SourceConfig) (*MintingSource, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.TokenURL == "" && cfg.IssuerURL == "" {
		return nil, errors.New("token URL or issuer URL is required")
	}

	if cfg.MintTimeout <= 0 {
		cfg.MintTimeout = 10 * time.Second
	}
	if cfg.DefaultTokenLifetime <= 0 {
		cfg.DefaultTokenLifetime = 5 * time.Minute
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &MintingSource{
		cfg:        cfg,
		logger:     logger.With("component", "gateway_auth"),
		metrics:    cfg.Metrics,
		httpClient: httpClient,
		now:        time.Now,
		tokenURL:   cfg.TokenURL,
	}, nil
}

// Token returns a cached token, minting a fresh one when the cache is empty
// or inside the expiry margin. Concurrent callers share a single mint.
func (s *MintingSource) Token(ctx context.Context) (string, error) {
	if token, ok := s.cached(); ok {
		return token, nil
	}

	v, err, _ := s.group.Do("mint", func() (any, error) {
		// A caller that queued behind the winning mint finds the cache warm.
		if token, ok := s.cached(); ok {
			return token, nil
		}
		return s.mint(ctx)
	})
	if err != nil {
		s.logger.Warn("gateway token mint failed, continuing without gateway credentials", "error", err)
		return "", nil
	}

	token, ok := v.(string)
	if !ok {
		return "", nil
	}
	return token, nil
}

func (s *MintingSource) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || !s.now().Before(s.retireAt) {
		return "", false
	}
	return s.token, true
}

func (s *MintingSource) mint(ctx context.Context) (string, error) {
	started := s.now()
	token, err := s.mintOnce(ctx)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitTokenMint(s.metrics, result, s.now().Sub(started))

	return token, err
}

func (s *MintingSource) mintOnce(ctx context.Context) (string, error) {
	tokenURL, err := s.resolveTokenURL(ctx)
	if err != nil {
		return "", err
	}

	mintCtx, cancel := context.WithTimeout(ctx, s.cfg.MintTimeout)
	defer cancel()
	mintCtx = context.WithValue(mintCtx, oauth2.HTTPClient, s.httpClient)

	grant := clientcredentials.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       strings.Fields(s.cfg.Scope),
	}

	tok, err := grant.Token(mintCtx)
	if err != nil {
		return "", fmt.Errorf("mint gateway token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token endpoint returned an empty access token")
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(s.cfg.DefaultTokenLifetime)
	}

	s.mu.Lock()
	s.token = tok.AccessToken
	s.retireAt = expiry.Add(-s.cfg.ExpiryMargin)
	s.mu.Unlock()

	return tok.AccessToken, nil
}

// resolveTokenURL returns the configured token endpoint, discovering it from
// the issuer on first use when none was configured directly.
func (s *MintingSource) resolveTokenURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.tokenURL
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	discoverCtx, cancel := context.WithTimeout(ctx, s.cfg.MintTimeout)
	defer cancel()
	discoverCtx = context.WithValue(discoverCtx, oauth2.HTTPClient, s.httpClient)

	op, err := gooidc.NewProvider(discoverCtx, normalizeIssuer(s.cfg.IssuerURL))
	if err != nil {
		return "", fmt.Errorf("oidc new provider: %w", err)
	}

	endpoint := op.Endpoint()
	if endpoint.TokenURL == "" {
		return "", errors.New("issuer advertises no token endpoint")
	}

	s.mu.Lock()
	s.tokenURL = endpoint.TokenURL
	s.mu.Unlock()
	return endpoint.TokenURL, nil
}

// normalizeIssuer strips a well-known suffix so both plain issuer URLs and
// full discovery URLs are accepted.
func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSuffix(issuer, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	return strings.TrimSuffix(issuer, "/")
}
