package normalize

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
)

// isoDate is the only shape accepted from the AI fallback.
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DateParser resolves posted dates from free text: relative patterns first
// ("3 days ago"), then absolute layouts, then the AI fallback.
type DateParser struct {
	rules  config.DateRules
	ai     Completer
	logger *slog.Logger
}

// NewDateParser creates a parser for one source's date rules.
func NewDateParser(rules config.DateRules, ai Completer, logger *slog.Logger) *DateParser {
	return &DateParser{rules: rules, ai: ai, logger: logger}
}

// Parse returns the posted date, or ok=false when every path fails. Callers
// substitute the processing date on failure; that is the documented policy,
// not an error. now is the processing date relative dates subtract from.
func (p *DateParser) Parse(ctx context.Context, text string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}

	for _, pat := range p.rules.RelativePatterns {
		groups := pat.Regexp.FindStringSubmatch(trimmed)
		if groups == nil || len(groups) < 2 {
			continue
		}
		n, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}
		switch pat.Unit {
		case "days":
			return now.AddDate(0, 0, -n), true
		case "weeks":
			return now.AddDate(0, 0, -7*n), true
		case "months":
			return now.AddDate(0, -n, 0), true
		}
	}

	for _, layout := range p.rules.AbsoluteFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}

	if p.rules.AIFallback.Enabled && p.ai != nil {
		if t, ok := p.aiParse(ctx, trimmed, now); ok {
			return t, true
		}
	}

	p.logger.Debug("no date pattern matched", "text", trimmed)
	return time.Time{}, false
}

// aiParse accepts only a strict YYYY-MM-DD answer.
func (p *DateParser) aiParse(ctx context.Context, text string, now time.Time) (time.Time, bool) {
	raw, ok := p.ai.Complete(ctx, p.rules.AIFallback.Prompt, map[string]string{
		"text": text,
		"date": now.Format("2006-01-02"),
	})
	if !ok {
		return time.Time{}, false
	}

	answer := strings.TrimSpace(strings.Trim(raw, `"`))
	if !isoDate.MatchString(answer) {
		p.logger.Debug("ai date answer not YYYY-MM-DD", "answer", answer)
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", answer)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
