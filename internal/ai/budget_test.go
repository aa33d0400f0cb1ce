package ai

import (
	"testing"
	"time"
)

func TestBudget_AllowCountsUpToLimit(t *testing.T) {
	b := NewBudget(3)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("call %d denied within limit", i+1)
		}
	}
	if b.Allow() {
		t.Error("call beyond limit must be denied")
	}
	if got := b.Used(); got != 3 {
		t.Errorf("Used = %d, want 3: denied calls must not consume", got)
	}
	if got := b.Remaining(); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestBudget_ZeroLimitDeniesEverything(t *testing.T) {
	b := NewBudget(0)
	if b.Allow() {
		t.Error("zero limit must deny")
	}
}

func TestBudget_MidnightRollover(t *testing.T) {
	clock := time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)
	b := NewBudget(1)
	b.now = func() time.Time { return clock }

	if !b.Allow() {
		t.Fatal("first call denied")
	}
	if b.Allow() {
		t.Fatal("second call within the day must be denied")
	}

	clock = clock.Add(2 * time.Hour) // crosses midnight
	if !b.Allow() {
		t.Error("new day must get a fresh budget")
	}
}

func TestBudget_ResetClearsCounter(t *testing.T) {
	b := NewBudget(1)
	if !b.Allow() {
		t.Fatal("first call denied")
	}
	b.Reset()
	if got := b.Used(); got != 0 {
		t.Errorf("Used after reset = %d, want 0", got)
	}
	if !b.Allow() {
		t.Error("call after reset must be allowed")
	}
}
