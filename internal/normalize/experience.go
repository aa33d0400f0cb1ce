package normalize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// ExperienceMapper maps free-text experience levels onto the six canonical
// levels. It never returns an empty result; the configured default (or
// "Entry") is the floor.
type ExperienceMapper struct {
	rules  config.ExperienceRules
	ai     Completer
	logger *slog.Logger
}

// NewExperienceMapper creates a mapper for one source's experience rules.
func NewExperienceMapper(rules config.ExperienceRules, ai Completer, logger *slog.Logger) *ExperienceMapper {
	return &ExperienceMapper{rules: rules, ai: ai, logger: logger}
}

// Map resolves text to a canonical level name: exact table match first, then
// case-insensitive bidirectional substring match in declaration order, then
// the AI fallback, then the configured default.
func (m *ExperienceMapper) Map(ctx context.Context, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return m.rules.Default
	}

	for _, e := range m.rules.Mappings {
		if e.Match == trimmed {
			return e.Level
		}
	}

	lower := strings.ToLower(trimmed)
	for _, e := range m.rules.Mappings {
		key := strings.ToLower(e.Match)
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			return e.Level
		}
	}

	if m.rules.AIFallback.Enabled && m.ai != nil {
		if lvl, ok := m.aiMap(ctx, trimmed); ok {
			return lvl
		}
	}

	return m.rules.Default
}

// aiMap accepts the AI answer only when it is one of the canonical levels.
func (m *ExperienceMapper) aiMap(ctx context.Context, text string) (string, bool) {
	raw, ok := m.ai.Complete(ctx, m.rules.AIFallback.Prompt, map[string]string{"text": text})
	if !ok {
		return "", false
	}
	answer := strings.TrimSpace(strings.Trim(raw, `"`))
	for _, lvl := range model.CanonicalLevels {
		if strings.EqualFold(answer, lvl) {
			return lvl, true
		}
	}
	m.logger.Debug("ai experience answer not canonical", "answer", answer)
	return "", false
}
