package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"

	"github.com/wayfinderhq/wayfinder/internal/core"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
)

// maxItinerarySources caps the source citations stored per itinerary.
const maxItinerarySources = 10

// itineraryProbeExpr locates the itinerary object inside a parsed JSON
// document, whether the document is the itinerary itself or wraps it under
// an "itinerary" key.
const itineraryProbeExpr = "itinerary || @"

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// ItineraryServiceOptions groups dependencies for ItineraryService.
type ItineraryServiceOptions struct {
	Repo      core.ItineraryRepository // Required: itinerary repository
	Logger    *slog.Logger             // Optional: structured logger
	Evaluator JMESPathEvaluator        // Optional: override document extraction evaluator
}

// ItineraryService provides business logic for itinerary persistence and lookup.
//
// Saves are idempotent: a second save at the same identity reports a duplicate
// carrying the existing id and never overwrites. The service also recovers
// itinerary documents from planner text for runs that describe a plan without
// saving it.
type ItineraryService struct {
	repo   core.ItineraryRepository
	jems   JMESPathEvaluator
	logger *slog.Logger
}

// NewItineraryService constructs a new ItineraryService.
func NewItineraryService(opts ItineraryServiceOptions) (*ItineraryService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ItineraryRepository is required")
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "itinerary_service")
	}

	return &ItineraryService{
		repo:   opts.Repo,
		jems:   jems,
		logger: logger,
	}, nil
}

// MustNewItineraryService constructs a new ItineraryService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewItineraryService(opts ItineraryServiceOptions) *ItineraryService {
	svc, err := NewItineraryService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ItineraryService: %v", err))
	}
	return svc
}

// Save persists one itinerary document idempotently. A document carrying its
// own itineraryId keeps it; otherwise the identity is derived from the request
// id (or the trip fields when that is empty too), so a retried save lands on
// the record the first attempt created.
func (s *ItineraryService) Save(
	ctx context.Context,
	ownerID string,
	doc map[string]any,
	requestID string,
) (model.SaveResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return model.SaveResult{}, errors.New("owner id is required")
	}

	itinerary, err := decodeItineraryDocument(doc)
	if err != nil {
		return model.SaveResult{}, err
	}

	itinerary.OwnerID = ownerID
	if strings.TrimSpace(itinerary.ItineraryID) == "" {
		itinerary.ItineraryID = model.StableItineraryID(
			ownerID, requestID, itinerary.Destination, itinerary.StartDate, itinerary.EndDate,
		)
	}
	itinerary.Sources = dedupeSources(itinerary.Sources)
	itinerary.EnsureShape()

	created, err := s.repo.CreateIfAbsent(ctx, itinerary)
	if err != nil {
		return model.SaveResult{}, fmt.Errorf("save itinerary: %w", err)
	}

	result := model.SaveResult{Created: created, ID: itinerary.ItineraryID}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "itinerary saved",
			"owner_id", ownerID,
			"itinerary_id", result.ID,
			"created", created,
		)
	}
	return result, nil
}

// Get retrieves an itinerary by owner and itinerary identity.
func (s *ItineraryService) Get(ctx context.Context, ownerID, itineraryID string) (*model.Itinerary, error) {
	itinerary, err := s.repo.Get(ctx, ownerID, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("get itinerary: %w", err)
	}
	return itinerary, nil
}

// ListRecent returns the owner's itineraries, most recent first.
func (s *ItineraryService) ListRecent(ctx context.Context, ownerID string, limit int) ([]*model.Itinerary, error) {
	itineraries, err := s.repo.ListRecent(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list itineraries: %w", err)
	}
	return itineraries, nil
}

// ExtractDocument recovers an itinerary document from free-form planner text.
// It scans the text for JSON objects (fenced or inline) and returns the first
// one carrying the itinerary shape, unwrapping an enclosing {"itinerary": ...}
// envelope when present. Returns nil when no document is found.
func (s *ItineraryService) ExtractDocument(text string) map[string]any {
	for _, candidate := range jsonObjectSpans(text) {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		value, err := s.jems.Evaluate(itineraryProbeExpr, parsed)
		if err != nil {
			continue
		}
		doc, ok := value.(map[string]any)
		if !ok {
			continue
		}
		if looksLikeItinerary(doc) {
			return doc
		}
	}
	return nil
}

// decodeItineraryDocument maps the agent-supplied document onto the stored
// record shape via its JSON form.
func decodeItineraryDocument(doc map[string]any) (*model.Itinerary, error) {
	if doc == nil {
		return nil, errors.New("itinerary document is required")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode itinerary document: %w", err)
	}
	var itinerary model.Itinerary
	if err := json.Unmarshal(raw, &itinerary); err != nil {
		return nil, fmt.Errorf("decode itinerary document: %w", err)
	}
	return &itinerary, nil
}

func looksLikeItinerary(doc map[string]any) bool {
	if _, ok := doc["destination"]; !ok {
		return false
	}
	_, hasItems := doc["items"]
	return hasItems
}

// jsonObjectSpans returns each balanced top-level {...} span in text. The
// scanner tracks string state so braces inside JSON strings do not unbalance
// it; fenced code blocks need no special casing because their content is a
// balanced span of the raw text.
func jsonObjectSpans(text string) []string {
	var (
		spans    []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, text[start:i+1])
			}
		}
	}
	return spans
}

// dedupeSources keeps the first citation per registrable domain, preserving
// order, capped at maxItinerarySources. Citations whose URL does not parse
// keep their slot so a malformed link never drops a neighbour.
func dedupeSources(sources []model.SourceRef) []model.SourceRef {
	if len(sources) == 0 {
		return sources
	}

	seen := make(map[string]bool, len(sources))
	out := make([]model.SourceRef, 0, len(sources))
	for _, src := range sources {
		if len(out) >= maxItinerarySources {
			break
		}
		domain := registrableDomain(src.URL)
		if domain != "" {
			if seen[domain] {
				continue
			}
			seen[domain] = true
		}
		out = append(out, src)
	}
	return out
}

// registrableDomain reduces a citation URL to its eTLD+1 for deduplication.
// Hosts without a public suffix (internal names, IPs) fall back to the bare
// lowercased host.
func registrableDomain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	// The suffix list would split an address into meaningless labels.
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return strings.ToLower(domain)
}
