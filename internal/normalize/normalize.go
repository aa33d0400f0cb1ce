// Package normalize holds the per-field normalizers: salary, experience
// level, location, posted date, and description cleanup. Each one takes raw
// text plus a source's compiled rules and produces a structured value, with
// an optional AI fallback when the manual rules come up empty. Normalizers
// never fail outward; a miss is a null/default result.
package normalize

import "context"

// Completer is the AI fallback surface. Implemented by ai.Client; the second
// return is false when no usable answer was produced (disabled, over budget,
// timeout, provider error).
type Completer interface {
	Complete(ctx context.Context, promptTemplate string, vars map[string]string) (string, bool)
}
