package normalize

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// locationResponseSchema constrains the AI fallback answer for locations.
var locationResponseSchema = jsonschema.MustCompileString("location_response.json", `{
	"type": "object",
	"properties": {
		"city":        {"type": ["string", "null"]},
		"countryCode": {"type": ["string", "null"]},
		"isRemote":    {"type": ["boolean", "null"]}
	}
}`)

// LocationNormalizer turns free-text locations into a city, country code and
// remote/hybrid flags.
type LocationNormalizer struct {
	rules  config.LocationRules
	ai     Completer
	logger *slog.Logger
}

// NewLocationNormalizer creates a normalizer for one source's location rules.
func NewLocationNormalizer(rules config.LocationRules, ai Completer, logger *slog.Logger) *LocationNormalizer {
	return &LocationNormalizer{rules: rules, ai: ai, logger: logger}
}

// Normalize applies remote/hybrid keyword detection, the ordered city mapping
// table and the ordered country patterns. A remote keyword forces the city to
// the literal "Remote" regardless of city mappings. The AI path runs only
// when the source configures no manual location rules at all, since the
// manual path otherwise always yields a result.
func (n *LocationNormalizer) Normalize(ctx context.Context, text string) model.Location {
	if n.manualEmpty() && n.rules.AIFallback.Enabled && n.ai != nil {
		if loc, ok := n.aiNormalize(ctx, text); ok {
			return loc
		}
	}

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	loc := model.Location{
		City:        trimmed,
		CountryCode: n.rules.DefaultCountry,
	}

	for _, kw := range n.rules.HybridKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			loc.IsHybrid = true
			break
		}
	}

	for _, m := range n.rules.CityMappings {
		if m.Match != "" && strings.Contains(lower, strings.ToLower(m.Match)) {
			loc.City = m.City
			break
		}
	}

	// Remote wins over any city mapping that also matched.
	for _, kw := range n.rules.RemoteKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			loc.IsRemote = true
			loc.City = "Remote"
			break
		}
	}

	for _, p := range n.rules.CountryPatterns {
		if p.Regexp.MatchString(trimmed) {
			loc.CountryCode = p.Code
			break
		}
	}

	return loc
}

func (n *LocationNormalizer) manualEmpty() bool {
	return len(n.rules.RemoteKeywords) == 0 &&
		len(n.rules.HybridKeywords) == 0 &&
		len(n.rules.CityMappings) == 0 &&
		len(n.rules.CountryPatterns) == 0
}

type aiLocation struct {
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
	IsRemote    bool   `json:"isRemote"`
}

func (n *LocationNormalizer) aiNormalize(ctx context.Context, text string) (model.Location, bool) {
	raw, ok := n.ai.Complete(ctx, n.rules.AIFallback.Prompt, map[string]string{"text": text})
	if !ok {
		return model.Location{}, false
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		n.logger.Debug("ai location response is not JSON", "error", err)
		return model.Location{}, false
	}
	if err := locationResponseSchema.Validate(doc); err != nil {
		n.logger.Debug("ai location response failed schema validation", "error", err)
		return model.Location{}, false
	}

	var r aiLocation
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return model.Location{}, false
	}

	loc := model.Location{
		City:        strings.TrimSpace(r.City),
		CountryCode: strings.ToUpper(strings.TrimSpace(r.CountryCode)),
		IsRemote:    r.IsRemote,
	}
	if loc.CountryCode == "" {
		loc.CountryCode = n.rules.DefaultCountry
	}
	if loc.IsRemote {
		loc.City = "Remote"
	}
	return loc, true
}
