package normalize

import (
	"context"
	"strings"
	"testing"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
)

func TestClean_ManualStripsHTML(t *testing.T) {
	c := NewDescriptionCleaner(config.DescriptionRules{Method: "manual", MaxLength: 10000}, nil, discardLogger())

	got := c.Clean(context.Background(), "<p>Build   <b>APIs</b></p>\n<ul><li>Go</li></ul>")
	if got != "Build APIs Go" {
		t.Errorf("got %q", got)
	}
}

func TestClean_ManualUnescapesEntities(t *testing.T) {
	c := NewDescriptionCleaner(config.DescriptionRules{Method: "manual", MaxLength: 10000}, nil, discardLogger())

	got := c.Clean(context.Background(), "&lt;p&gt;C&amp;B package&lt;/p&gt;")
	if got != "C&B package" {
		t.Errorf("got %q", got)
	}
}

func TestClean_CapsAtRuneBoundary(t *testing.T) {
	c := NewDescriptionCleaner(config.DescriptionRules{Method: "manual", MaxLength: 5}, nil, discardLogger())

	got := c.Clean(context.Background(), "Kỹ sư phần mềm")
	if got != "Kỹ sư" {
		t.Errorf("got %q", got)
	}
}

func TestClean_AIRewriteUsed(t *testing.T) {
	ai := &fakeCompleter{resp: "Rewritten summary.", ok: true}
	rules := config.DescriptionRules{Method: "ai", MaxLength: 10000, Prompt: "clean {text}"}
	c := NewDescriptionCleaner(rules, ai, discardLogger())

	got := c.Clean(context.Background(), "<p>messy</p>")
	if !ai.called {
		t.Fatal("expected AI call")
	}
	if got != "Rewritten summary." {
		t.Errorf("got %q", got)
	}
}

func TestClean_AIFailureFallsBackToManual(t *testing.T) {
	ai := &fakeCompleter{ok: false}
	rules := config.DescriptionRules{Method: "ai", MaxLength: 10000, Prompt: "clean {text}"}
	c := NewDescriptionCleaner(rules, ai, discardLogger())

	got := c.Clean(context.Background(), "<p>messy  text</p>")
	if got != "messy text" {
		t.Errorf("got %q", got)
	}
}

func TestClean_AIOutputAlsoCapped(t *testing.T) {
	long := strings.Repeat("x", 50)
	ai := &fakeCompleter{resp: long, ok: true}
	rules := config.DescriptionRules{Method: "ai", MaxLength: 20, Prompt: "clean {text}"}
	c := NewDescriptionCleaner(rules, ai, discardLogger())

	if got := c.Clean(context.Background(), "raw"); len(got) != 20 {
		t.Errorf("len = %d, want 20", len(got))
	}
}
