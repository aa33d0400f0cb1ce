package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeProvider struct {
	resp    string
	err     error
	prompts []string
}

func (f *fakeProvider) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.resp, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestComplete_RendersPlaceholders(t *testing.T) {
	p := &fakeProvider{resp: "answer"}
	c := NewClient(p, NewBudget(10), time.Second, testLogger())

	got, ok := c.Complete(context.Background(), "parse {text} as of {date}", map[string]string{
		"text": "3 days ago",
		"date": "2024-05-10",
	})
	if !ok || got != "answer" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if len(p.prompts) != 1 || p.prompts[0] != "parse 3 days ago as of 2024-05-10" {
		t.Errorf("prompt = %q", p.prompts)
	}
}

func TestComplete_BudgetExhaustedSkipsProvider(t *testing.T) {
	p := &fakeProvider{resp: "answer"}
	c := NewClient(p, NewBudget(1), time.Second, testLogger())

	if _, ok := c.Complete(context.Background(), "q", nil); !ok {
		t.Fatal("first call should pass")
	}
	if _, ok := c.Complete(context.Background(), "q", nil); ok {
		t.Error("exhausted budget must report no answer")
	}
	if len(p.prompts) != 1 {
		t.Errorf("provider called %d times, want 1", len(p.prompts))
	}
}

func TestComplete_ProviderErrorIsQuietMiss(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	c := NewClient(p, NewBudget(10), time.Second, testLogger())

	if _, ok := c.Complete(context.Background(), "q", nil); ok {
		t.Error("provider error must yield ok=false")
	}
}

func TestComplete_NopProviderNeverAnswers(t *testing.T) {
	c := NewClient(NewNopProvider(), NewBudget(10), time.Second, testLogger())
	if _, ok := c.Complete(context.Background(), "q", nil); ok {
		t.Error("nop provider must yield ok=false")
	}
}

func TestComplete_NilClientIsSafe(t *testing.T) {
	var c *Client
	if _, ok := c.Complete(context.Background(), "q", nil); ok {
		t.Error("nil client must yield ok=false")
	}
}

func TestComplete_StripsCodeFence(t *testing.T) {
	p := &fakeProvider{resp: "```json\n{\"a\": 1}\n```"}
	c := NewClient(p, NewBudget(10), time.Second, testLogger())

	got, ok := c.Complete(context.Background(), "q", nil)
	if !ok || got != `{"a": 1}` {
		t.Errorf("got %q ok=%v", got, ok)
	}
}

func TestComplete_BlankAnswerIsMiss(t *testing.T) {
	p := &fakeProvider{resp: "   \n"}
	c := NewClient(p, NewBudget(10), time.Second, testLogger())

	if _, ok := c.Complete(context.Background(), "q", nil); ok {
		t.Error("blank answer must yield ok=false")
	}
}
