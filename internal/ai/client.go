package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// ErrDisabled is returned by NopProvider; Client folds it into a quiet miss.
var ErrDisabled = errors.New("ai disabled")

// Client is the rate-limited fallback adapter handed to the normalizers.
// Every failure mode (disabled, budget exhausted, timeout, provider error)
// collapses to ok=false; callers treat that as "no result", never as an error.
type Client struct {
	provider Provider
	budget   *Budget
	timeout  time.Duration
	logger   *slog.Logger
}

// NewClient wires a provider to a budget. The budget is owned by the caller
// so its reset semantics stay visible to the scheduler.
func NewClient(provider Provider, budget *Budget, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		provider: provider,
		budget:   budget,
		timeout:  timeout,
		logger:   logger,
	}
}

// Complete renders the prompt template with vars (placeholders like {text}
// and {date}) and asks the provider. The second return is false when no
// usable answer was produced for any reason.
func (c *Client) Complete(ctx context.Context, promptTemplate string, vars map[string]string) (string, bool) {
	if c == nil || c.provider == nil {
		return "", false
	}
	if !c.budget.Allow() {
		c.logger.Warn("ai daily budget exhausted, skipping fallback")
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := renderPrompt(promptTemplate, vars)
	raw, err := c.provider.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			c.logger.Warn("ai fallback failed", "error", err)
		}
		return "", false
	}

	raw = strings.TrimSpace(stripCodeFence(raw))
	if raw == "" {
		return "", false
	}
	return raw, true
}

// renderPrompt substitutes {key} placeholders from vars into the template.
func renderPrompt(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// wrap around JSON answers despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return s
}
