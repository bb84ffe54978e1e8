package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wayfinderhq/wayfinder/internal/core"
)

const (
	// webFetchTimeout bounds one http_request tool call.
	webFetchTimeout = 10 * time.Second

	// maxWebFetchBodyBytes caps the page preview returned to the model.
	maxWebFetchBodyBytes = 8 * 1024

	// defaultWebFetchBudget is the per-run http_request call budget when the
	// configuration does not set one.
	defaultWebFetchBudget = 8
)

// LocalToolsOptions groups dependencies for one planning run's baseline tool
// set. Owner and request identity are bound server-side so the model never
// supplies them.
type LocalToolsOptions struct {
	Itineraries   *ItineraryService // Required: itinerary persistence and lookup
	OwnerID       string            // Required: owner identity bound into every tool
	RequestID     string            // Required: request identity anchoring the save
	HTTPClient    *http.Client      // Optional: web fetch client
	WebCallBudget int               // Optional: per-run http_request budget
	Logger        *slog.Logger      // Optional: structured logger
}

// LocalTools builds the baseline tool set for one planning run: web research,
// itinerary save, and itinerary lookup. The returned tools are registered
// ahead of gateway tools so a remote descriptor can never shadow them.
func LocalTools(opts LocalToolsOptions) []core.Tool {
	return []core.Tool{
		webFetchTool(opts),
		saveItineraryTool(opts),
		getItinerariesTool(opts),
	}
}

func saveItineraryTool(opts LocalToolsOptions) core.Tool {
	return core.Tool{
		Descriptor: core.ToolDescriptor{
			Name:        "save_itinerary",
			Description: "Persist the finished itinerary. Idempotent: returns saved:<id> or duplicate:<id>.",
			Variant:     core.ToolVariantBuiltin,
			Schema: core.ToolSchema{
				Type: "object",
				Properties: map[string]any{
					"itinerary": map[string]any{
						"type":        "object",
						"description": "Itinerary document with destination, startDate, endDate, items[], sources[].",
					},
				},
				Required: []string{"itinerary"},
			},
		},
		Invoke: func(ctx context.Context, call core.ToolCall) (string, error) {
			doc, ok := call.Arguments["itinerary"].(map[string]any)
			if !ok {
				return "", errors.New("itinerary must be a JSON object")
			}
			result, err := opts.Itineraries.Save(ctx, opts.OwnerID, doc, opts.RequestID)
			if err != nil {
				return "", err
			}
			return result.String(), nil
		},
	}
}

func getItinerariesTool(opts LocalToolsOptions) core.Tool {
	return core.Tool{
		Descriptor: core.ToolDescriptor{
			Name:        "get_itineraries",
			Description: "List the traveler's saved itineraries, most recent first.",
			Variant:     core.ToolVariantBuiltin,
			Schema: core.ToolSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of itineraries to return (default 10).",
					},
				},
			},
		},
		Invoke: func(ctx context.Context, call core.ToolCall) (string, error) {
			itineraries, err := opts.Itineraries.ListRecent(ctx, opts.OwnerID, intArgument(call.Arguments, "limit"))
			if err != nil {
				return "", err
			}
			encoded, err := json.Marshal(itineraries)
			if err != nil {
				return "", fmt.Errorf("encode itineraries: %w", err)
			}
			return string(encoded), nil
		},
	}
}

// webFetchTool exposes bounded GET-only web research. Each run carries its own
// call budget; exhausting it returns an error the model sees as a tool result,
// so it can fall back to what it already knows.
func webFetchTool(opts LocalToolsOptions) core.Tool {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: webFetchTimeout}
	}
	budget := int32(opts.WebCallBudget)
	if budget <= 0 {
		budget = defaultWebFetchBudget
	}

	var calls atomic.Int32
	return core.Tool{
		Descriptor: core.ToolDescriptor{
			Name:        "http_request",
			Description: "Fetch a public web page over GET and return a capped text preview.",
			Variant:     core.ToolVariantBuiltin,
			Schema: core.ToolSchema{
				Type: "object",
				Properties: map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "Absolute http(s) URL to fetch.",
					},
				},
				Required: []string{"url"},
			},
		},
		Invoke: func(ctx context.Context, call core.ToolCall) (string, error) {
			rawURL, _ := call.Arguments["url"].(string)
			if err := validateFetchURL(rawURL); err != nil {
				return "", err
			}
			if used := calls.Add(1); used > budget {
				return "", fmt.Errorf("http_request budget of %d calls exhausted", budget)
			}
			return fetchPage(ctx, client, opts.Logger, rawURL)
		},
	}
}

func validateFetchURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("url host is required")
	}
	return nil
}

func fetchPage(ctx context.Context, client *http.Client, logger *slog.Logger, rawURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, webFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "wayfinder/1.0")
	req.Header.Set("Accept", "text/html, application/json, text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	body, truncated, readErr := readBodyPreview(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = closeErr
	}
	if readErr != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, readErr)
	}

	if logger != nil {
		logger.DebugContext(ctx, "web fetch",
			"url", rawURL,
			"status", resp.StatusCode,
			"bytes", len(body),
			"truncated", truncated,
		)
	}

	preview := fmt.Sprintf("status %d\n%s", resp.StatusCode, body)
	if truncated {
		preview += "\n[truncated]"
	}
	return preview, nil
}

// readBodyPreview reads up to maxWebFetchBodyBytes and reports whether the
// body was longer.
func readBodyPreview(body io.Reader) (string, bool, error) {
	if body == nil {
		return "", false, nil
	}
	limited := io.LimitReader(body, maxWebFetchBodyBytes+1)
	data, err := io.ReadAll(limited)
	truncated := len(data) > maxWebFetchBodyBytes
	if truncated {
		data = data[:maxWebFetchBodyBytes]
	}
	return string(data), truncated, err
}

// intArgument pulls an integer argument out of a decoded JSON argument map.
// Absent or malformed values return zero and leave defaulting to the callee.
func intArgument(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return 0
}
