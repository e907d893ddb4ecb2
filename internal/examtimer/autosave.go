package examtimer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SaveStatus is the indicator shown next to the countdown.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

// SaveFunc persists the current draft.
type SaveFunc func(ctx context.Context) error

// Autosaver calls a SaveFunc on a fixed interval. A failed save sets the
// status to error and is retried on the next tick, never immediately.
type Autosaver struct {
	interval time.Duration
	save     SaveFunc
	log      zerolog.Logger

	saveMu sync.Mutex // serializes periodic and manual saves

	mu        sync.Mutex
	status    SaveStatus
	lastErr   error
	lastSaved time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewAutosaver creates an Autosaver. It does nothing until Start.
func NewAutosaver(interval time.Duration, save SaveFunc, log zerolog.Logger) *Autosaver {
	return &Autosaver{
		interval: interval,
		save:     save,
		log:      log.With().Str("component", "autosaver").Logger(),
		status:   SaveIdle,
		done:     make(chan struct{}),
	}
}

// Start launches the periodic task. Calling it more than once has no effect.
func (a *Autosaver) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		ticker := time.NewTicker(a.interval)
		ctx, a.cancel = context.WithCancel(ctx)
		go func() {
			defer ticker.Stop()
			a.loop(ctx, ticker.C)
		}()
	})
}

// startWithTicks is Start with an injected tick source.
func (a *Autosaver) startWithTicks(ctx context.Context, ticks <-chan time.Time) {
	a.startOnce.Do(func() {
		ctx, a.cancel = context.WithCancel(ctx)
		go a.loop(ctx, ticks)
	})
}

func (a *Autosaver) loop(ctx context.Context, ticks <-chan time.Time) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			if err := a.SaveNow(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("Autosave failed, retrying on next tick")
			}
		}
	}
}

// SaveNow runs one save outside the schedule and updates the status.
func (a *Autosaver) SaveNow(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.setStatus(SaveSaving, nil)
	err := a.save(ctx)
	if err != nil {
		a.setStatus(SaveError, err)
		return err
	}
	a.setStatus(SaveSaved, nil)
	return nil
}

func (a *Autosaver) setStatus(s SaveStatus, err error) {
	a.mu.Lock()
	a.status = s
	a.lastErr = err
	if s == SaveSaved {
		a.lastSaved = time.Now()
	}
	a.mu.Unlock()
}

func (a *Autosaver) Status() SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// LastError returns the error of the most recent save, or nil.
func (a *Autosaver) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *Autosaver) LastSaved() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSaved
}

// Stop cancels the periodic task and waits for it to exit. It is safe to
// call more than once and on an Autosaver that was never started.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() {
		a.startOnce.Do(func() {}) // a Start after Stop must not launch anything
		if a.cancel != nil {
			a.cancel()
			<-a.done
		}
	})
}
