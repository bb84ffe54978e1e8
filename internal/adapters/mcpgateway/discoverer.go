package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/observability/metrics"
	"github.com/wayfinderhq/wayfinder/internal/observability/statsd"
)

// descriptorCachePrefix keys the serialized descriptor list in Redis by
// gateway URL so back-to-back planning runs skip the discovery round-trip
// without mixing descriptors across gateways.
const descriptorCachePrefix = "wayfinder:gateway:tools:"

// DiscovererOptions configures the gateway tool discoverer.
type DiscovererOptions struct {
	// GatewayURL is the MCP streamable HTTP endpoint.
	GatewayURL string

	// Credentials supplies the bearer token for gateway calls. An empty
	// credential disables gateway tools for the run.
	Credentials core.CredentialSource

	// Cache, when set, stores discovered descriptors under CacheTTL.
	Cache    core.CacheRepository
	CacheTTL time.Duration

	// CallTimeout bounds each gateway round-trip, session setup included.
	CallTimeout time.Duration

	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Discoverer lists gateway tools and wraps them as locally callable entries.
// Each wrapped invocation opens its own authenticated session so calls never
// share transport state across planning runs.
type Discoverer struct {
	credentials core.CredentialSource
	cache       core.CacheRepository
	cacheKey    string
	cacheTTL    time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     statsd.Sink

	dial dialFunc
}

var _ core.ToolDiscoverer = (*Discoverer)(nil)

// NewDiscoverer creates a gateway tool discoverer.
func NewDiscoverer(opts DiscovererOptions) (*Discoverer, error) {
	if opts.GatewayURL == "" {
		return nil, errors.New("gateway URL is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credential source is required")
	}

	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}

	cacheTTL := opts.CacheTTL
	if cacheTTL < 0 {
		cacheTTL = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Discoverer{
		credentials: opts.Credentials,
		cache:       opts.Cache,
		cacheKey:    descriptorCachePrefix + opts.GatewayURL,
		cacheTTL:    cacheTTL,
		callTimeout: callTimeout,
		logger:      logger.With("component", "mcp_gateway"),
		metrics:     opts.Metrics,
		dial:        newStreamableDialer(opts.GatewayURL, callTimeout),
	}, nil
}

// Discover lists the gateway's tools wrapped for local invocation. Discovery
// is advisory: a missing credential or unreachable gateway yields an empty
// list, and descriptors that fail to wrap are skipped individually.
func (d *Discoverer) Discover(ctx context.Context) []core.Tool {
	token, err := d.credentials.Token(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "gateway credential lookup failed, continuing with local tools only", "error", err)
		return nil
	}
	if token == "" {
		d.logger.DebugContext(ctx, "no gateway credential, continuing with local tools only")
		return nil
	}

	descriptors, fromCache := d.cachedDescriptors(ctx)
	if !fromCache {
		descriptors, err = d.listDescriptors(ctx, token)
		if err != nil {
			d.logger.WarnContext(ctx, "gateway tool discovery failed, continuing with local tools only", "error", err)
			d.emitDiscovery(metrics.ResultError, false)
			return nil
		}
		d.storeDescriptors(ctx, descriptors)
	}
	d.emitDiscovery(metrics.ResultSuccess, fromCache)

	tools := make([]core.Tool, 0, len(descriptors))
	for _, desc := range descriptors {
		tools = append(tools, core.Tool{
			Descriptor: desc.coreDescriptor(),
			Invoke:     d.invoker(desc),
		})
	}
	return tools
}

// cachedDescriptors loads the descriptor list from the cache. A corrupt entry
// is dropped so the next discovery repopulates it.
func (d *Discoverer) cachedDescriptors(ctx context.Context) ([]toolDescriptor, bool) {
	if d.cache == nil || d.cacheTTL == 0 {
		return nil, false
	}

	raw, err := d.cache.Get(ctx, d.cacheKey)
	if err != nil {
		d.logger.DebugContext(ctx, "gateway descriptor cache read failed", "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var descriptors []toolDescriptor
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		d.logger.WarnContext(ctx, "dropping corrupt gateway descriptor cache entry", "error", err)
		if _, err := d.cache.Delete(ctx, d.cacheKey); err != nil {
			d.logger.DebugContext(ctx, "gateway descriptor cache delete failed", "error", err)
		}
		return nil, false
	}
	return descriptors, true
}

func (d *Discoverer) storeDescriptors(ctx context.Context, descriptors []toolDescriptor) {
	if d.cache == nil || d.cacheTTL == 0 {
		return
	}

	raw, err := json.Marshal(descriptors)
	if err != nil {
		d.logger.WarnContext(ctx, "gateway descriptor cache encode failed", "error", err)
		return
	}
	if err := d.cache.Set(ctx, d.cacheKey, raw, d.cacheTTL); err != nil {
		d.logger.DebugContext(ctx, "gateway descriptor cache write failed", "error", err)
	}
}

// listDescriptors queries the gateway for its advertised tools over a fresh
// session.
func (d *Discoverer) listDescriptors(ctx context.Context, token string) ([]toolDescriptor, error) {
	opCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	sess, err := d.dial(opCtx, token)
	if err != nil {
		return nil, err
	}
	defer d.closeSession(sess)

	listed, err := sess.ListTools(opCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list gateway tools: %w", err)
	}

	descriptors := make([]toolDescriptor, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		desc, err := newToolDescriptor(tool)
		if err != nil {
			d.logger.WarnContext(ctx, "skipping unusable gateway tool", "error", err)
			continue
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

// invoker wraps one gateway tool as an invocation closure. Arguments are
// checked against the advertised schema before anything leaves the process;
// every call then opens and closes its own session, mirroring how discovery
// does.
func (d *Discoverer) invoker(desc toolDescriptor) core.InvokeFunc {
	name := desc.Name
	return func(ctx context.Context, call core.ToolCall) (string, error) {
		if err := validateArguments(desc.Schema, call.Arguments); err != nil {
			return "", fmt.Errorf("gateway tool %q: %w", name, err)
		}

		token, err := d.credentials.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("gateway credential: %w", err)
		}
		if token == "" {
			return "", errors.New("gateway credential unavailable")
		}

		opCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		defer cancel()

		sess, err := d.dial(opCtx, token)
		if err != nil {
			return "", err
		}
		defer d.closeSession(sess)

		correlationID := call.CorrelationID
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = call.Arguments
		req.Params.Meta = &mcp.Meta{ProgressToken: correlationID}

		result, err := sess.CallTool(opCtx, req)
		if err != nil {
			return "", fmt.Errorf("call gateway tool %q: %w", name, err)
		}

		text := textContent(result)
		if result.IsError {
			if text == "" {
				text = "tool reported an error"
			}
			return "", fmt.Errorf("gateway tool %q: %s", name, text)
		}
		return text, nil
	}
}

func (d *Discoverer) closeSession(sess gatewaySession) {
	if err := sess.Close(); err != nil {
		d.logger.Debug("gateway session close failed", "error", err)
	}
}

func (d *Discoverer) emitDiscovery(result string, fromCache bool) {
	if d.metrics == nil {
		return
	}
	source := "gateway"
	if fromCache {
		source = "cache"
	}
	d.metrics.Count("gateway.discovery", 1, map[string]string{
		"result": result,
		"source": source,
	})
}
