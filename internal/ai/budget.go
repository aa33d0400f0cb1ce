package ai

import (
	"sync"
	"time"
)

// Budget enforces the process-wide daily cap on AI calls. The counter rolls
// over at local midnight; Reset lets a scheduler collaborator clear it early.
type Budget struct {
	mu    sync.Mutex
	limit int
	used  int
	day   time.Time        // midnight of the current window
	now   func() time.Time // injectable clock for tests
}

// NewBudget creates a budget allowing limit calls per day. A limit of zero
// or less denies every call.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit, now: time.Now}
}

// Allow reports whether one more call fits the current day's budget and, if
// so, counts it. Check-before-increment: a denied call does not consume.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Remaining returns the number of calls left in the current day's window.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if r := b.limit - b.used; r > 0 {
		return r
	}
	return 0
}

// Used returns the number of calls consumed in the current day's window.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	return b.used
}

// Reset clears the counter immediately, starting a fresh window.
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.used = 0
	b.day = midnight(b.now())
}

// rollover resets the counter when the clock has crossed into a new day.
// Caller must hold b.mu.
func (b *Budget) rollover() {
	today := midnight(b.now())
	if !today.Equal(b.day) {
		b.day = today
		b.used = 0
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
