package normalize

import (
	"context"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// DescriptionCleaner produces the cleaned description: either an HTML strip
// plus length cap (manual) or an AI rewrite that falls back to manual when
// the AI call fails.
type DescriptionCleaner struct {
	rules  config.DescriptionRules
	ai     Completer
	logger *slog.Logger
}

// NewDescriptionCleaner creates a cleaner for one source's description rules.
func NewDescriptionCleaner(rules config.DescriptionRules, ai Completer, logger *slog.Logger) *DescriptionCleaner {
	return &DescriptionCleaner{rules: rules, ai: ai, logger: logger}
}

// Clean returns the normalized description text.
func (c *DescriptionCleaner) Clean(ctx context.Context, raw string) string {
	if c.rules.Method == "ai" && c.ai != nil {
		if out, ok := c.ai.Complete(ctx, c.rules.Prompt, map[string]string{"text": stripHTML(raw)}); ok {
			return capLength(out, c.rules.MaxLength)
		}
		c.logger.Debug("ai description cleanup unavailable, using manual strip")
	}
	return capLength(stripHTML(raw), c.rules.MaxLength)
}

// stripHTML converts an HTML or HTML-encoded string to plain text: unescape
// entities (handles double-encoded sources; no-op on real HTML), strip tags,
// collapse whitespace.
func stripHTML(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// capLength truncates at a rune boundary.
func capLength(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
