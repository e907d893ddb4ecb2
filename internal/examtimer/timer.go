// Package examtimer holds the client-side exam countdown, the periodic
// autosaver it drives and the in-memory answer draft.
package examtimer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the countdown state. Expired is terminal.
type State int

const (
	Running State = iota
	Paused
	Expired
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Expired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Level buckets the remaining-time percentage for display.
type Level string

const (
	LevelNominal  Level = "nominal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Timer counts an exam down one second per Tick.
type Timer struct {
	mu        sync.Mutex
	total     int
	remaining int
	state     State

	onExpire func()
	once     sync.Once
}

// New returns a running timer of the given length in minutes. onExpire
// runs exactly once, on the goroutine whose tick reached zero.
func New(minutes int, onExpire func()) *Timer {
	return NewSeconds(minutes*60, onExpire)
}

// NewSeconds is New with the length in seconds.
func NewSeconds(seconds int, onExpire func()) *Timer {
	if seconds < 0 {
		seconds = 0
	}
	return &Timer{
		total:     seconds,
		remaining: seconds,
		state:     Running,
		onExpire:  onExpire,
	}
}

// Tick consumes one second if running and reports the resulting state.
// Ticks after expiry are no-ops; the expiry callback never runs twice.
func (t *Timer) Tick() State {
	t.mu.Lock()
	if t.state != Running {
		s := t.state
		t.mu.Unlock()
		return s
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.state = Expired
	}
	s := t.state
	t.mu.Unlock()

	if s == Expired {
		t.fire()
	}
	return s
}

// Expire ends the countdown immediately, e.g. when the exam was closed
// server-side. It fires the callback if it has not fired yet.
func (t *Timer) Expire() {
	t.mu.Lock()
	t.remaining = 0
	t.state = Expired
	t.mu.Unlock()
	t.fire()
}

func (t *Timer) fire() {
	t.once.Do(func() {
		if t.onExpire != nil {
			t.onExpire()
		}
	})
}

// Toggle switches between Running and Paused.
func (t *Timer) Toggle() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Running:
		t.state = Paused
	case Paused:
		t.state = Running
	}
	return t.state
}

func (t *Timer) Pause() {
	t.mu.Lock()
	if t.state == Running {
		t.state = Paused
	}
	t.mu.Unlock()
}

func (t *Timer) Resume() {
	t.mu.Lock()
	if t.state == Paused {
		t.state = Running
	}
	t.mu.Unlock()
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Progress returns the remaining time as a percentage of the total.
func (t *Timer) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total == 0 {
		return 0
	}
	return float64(t.remaining) / float64(t.total) * 100
}

// Level maps Progress to a display level: above 50 is nominal, above 25
// is a warning, anything else is critical.
func (t *Timer) Level() Level {
	p := t.Progress()
	switch {
	case p > 50:
		return LevelNominal
	case p > 25:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// Format renders the remaining time as MM:SS. Minutes are not wrapped
// into hours.
func (t *Timer) Format() string {
	r := t.Remaining()
	return fmt.Sprintf("%02d:%02d", r/60, r%60)
}

// Run ticks the timer on every value received from ticks. It returns nil
// once the timer expires or ticks is closed, and ctx.Err() on cancellation.
func (t *Timer) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if t.Tick() == Expired {
				return nil
			}
		}
	}
}

// Start runs the timer on a one-second ticker.
func (t *Timer) Start(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	return t.Run(ctx, ticker.C)
}
