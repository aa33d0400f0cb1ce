package normalize

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// salaryResponseSchema constrains the AI fallback answer for salaries.
var salaryResponseSchema = jsonschema.MustCompileString("salary_response.json", `{
	"type": "object",
	"properties": {
		"min":      {"type": ["number", "null"]},
		"max":      {"type": ["number", "null"]},
		"currency": {"type": ["string", "null"]}
	}
}`)

// SalaryParser extracts a structured salary from free text using a source's
// ordered pattern list. First matching pattern wins; pattern order in the
// configuration is a deliberate priority.
type SalaryParser struct {
	rules  config.SalaryRules
	ai     Completer
	logger *slog.Logger
}

// NewSalaryParser creates a parser for one source's salary rules.
func NewSalaryParser(rules config.SalaryRules, ai Completer, logger *slog.Logger) *SalaryParser {
	return &SalaryParser{rules: rules, ai: ai, logger: logger}
}

// Parse returns the structured salary, or nil when neither the manual
// patterns nor the AI fallback produce one. A nil result means "unknown",
// not an error.
func (p *SalaryParser) Parse(ctx context.Context, text string) *model.Salary {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for _, pat := range p.rules.Patterns {
		if s := p.applyPattern(pat, text); s != nil {
			return s
		}
	}

	if p.rules.AIFallback.Enabled && p.ai != nil {
		if s := p.aiParse(ctx, text); s != nil {
			return s
		}
	}

	p.logger.Debug("no salary pattern matched", "text", text)
	return nil
}

// applyPattern returns nil when the pattern does not match or a captured
// numeric group fails to parse; the caller then tries the next pattern.
func (p *SalaryParser) applyPattern(pat config.SalaryPattern, text string) *model.Salary {
	groups := pat.Regexp.FindStringSubmatch(text)
	if groups == nil {
		return nil
	}

	currency := p.rules.DefaultCurrency
	if pat.DefaultCurrency != "" {
		currency = pat.DefaultCurrency
	}
	if pat.CurrencyGroup > 0 && pat.CurrencyGroup < len(groups) && groups[pat.CurrencyGroup] != "" {
		currency = strings.ToUpper(strings.TrimSpace(groups[pat.CurrencyGroup]))
	}

	switch pat.Kind {
	case model.SalaryNegotiable:
		return &model.Salary{Currency: currency, Kind: model.SalaryNegotiable}

	case model.SalaryRange:
		lo, ok := numericGroup(groups, pat.MinGroup, pat.Multiplier)
		if !ok {
			return nil
		}
		hi, ok := numericGroup(groups, pat.MaxGroup, pat.Multiplier)
		if !ok {
			return nil
		}
		avg := (lo + hi) / 2
		return &model.Salary{Min: &lo, Max: &hi, Average: &avg, Currency: currency, Kind: model.SalaryRange}

	case model.SalaryMin:
		v, ok := numericGroup(groups, pat.ValueGroup, pat.Multiplier)
		if !ok {
			return nil
		}
		avg := v
		return &model.Salary{Min: &v, Average: &avg, Currency: currency, Kind: model.SalaryMin}

	case model.SalaryMax:
		v, ok := numericGroup(groups, pat.ValueGroup, pat.Multiplier)
		if !ok {
			return nil
		}
		avg := v
		return &model.Salary{Max: &v, Average: &avg, Currency: currency, Kind: model.SalaryMax}

	case model.SalaryExact:
		v, ok := numericGroup(groups, pat.ValueGroup, pat.Multiplier)
		if !ok {
			return nil
		}
		lo, hi, avg := v, v, v
		return &model.Salary{Min: &lo, Max: &hi, Average: &avg, Currency: currency, Kind: model.SalaryExact}
	}

	return nil
}

// numericGroup parses capture group idx as a number and applies the
// multiplier. Thousands separators and surrounding whitespace are stripped
// before parsing.
func numericGroup(groups []string, idx int, multiplier float64) (float64, bool) {
	if idx <= 0 || idx >= len(groups) {
		return 0, false
	}
	v, err := parseNumber(groups[idx])
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

// parseNumber handles "25,000", "25 000" and "25.000.000" style separators.
// A single dot is kept as the decimal point; repeated dots are separators.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if strings.Count(s, ".") > 1 {
		s = strings.ReplaceAll(s, ".", "")
	}
	return strconv.ParseFloat(s, 64)
}

// aiSalary is the JSON shape the fallback prompt asks for.
type aiSalary struct {
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Currency string   `json:"currency"`
}

func (p *SalaryParser) aiParse(ctx context.Context, text string) *model.Salary {
	raw, ok := p.ai.Complete(ctx, p.rules.AIFallback.Prompt, map[string]string{"text": text})
	if !ok {
		return nil
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		p.logger.Debug("ai salary response is not JSON", "error", err)
		return nil
	}
	if err := salaryResponseSchema.Validate(doc); err != nil {
		p.logger.Debug("ai salary response failed schema validation", "error", err)
		return nil
	}

	var r aiSalary
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil
	}
	if r.Min == nil && r.Max == nil {
		return nil
	}

	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if currency == "" {
		currency = p.rules.DefaultCurrency
	}

	s := &model.Salary{Min: r.Min, Max: r.Max, Currency: currency}
	switch {
	case r.Min != nil && r.Max != nil:
		avg := (*r.Min + *r.Max) / 2
		s.Average = &avg
		s.Kind = model.SalaryRange
	case r.Min != nil:
		avg := *r.Min
		s.Average = &avg
		s.Kind = model.SalaryMin
	default:
		avg := *r.Max
		s.Average = &avg
		s.Kind = model.SalaryMax
	}
	return s
}
