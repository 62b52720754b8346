package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time, so playback
// consumers can depend on a clock abstraction rather than a concrete
// controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// After returns a channel that receives the simulation time once d of
	// simulated time has passed.
	After(d time.Duration) <-chan time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime paces ticks against the wall clock, scaled by Multiplier.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// TimeController drives simulation time and notifies registered listeners.
// With Loop set, time wraps back to StartTime once Window has elapsed; without
// it, a positive Window stops the controller at the window's end.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode
	// Multiplier is simulated time per unit of wall time in RealTime mode.
	Multiplier float64
	Window     time.Duration
	Loop       bool

	currentTime time.Time
	// elapsed is total simulated time advanced, unaffected by wrapping.
	elapsed time.Duration
	timers  []timer

	listeners     []func(time.Time)
	loopListeners []func(time.Time)
}

type timer struct {
	due time.Duration
	ch  chan time.Time
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		Multiplier:  1,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps the clock to t, wrapping into the window when looping.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime, _ = tc.wrap(t)
}

// After implements SimClock. The channel fires on the first tick at or past
// the deadline.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if d <= 0 {
		ch <- tc.currentTime
		return ch
	}
	tc.timers = append(tc.timers, timer{due: tc.elapsed + d, ch: ch})
	return ch
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// AddLoopListener registers a callback invoked each time the clock wraps.
func (tc *TimeController) AddLoopListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.loopListeners = append(tc.loopListeners, fn)
}

// Step advances the clock by one tick and notifies listeners. It reports
// false once a non-looping window is exhausted.
func (tc *TimeController) Step() bool {
	tc.mu.Lock()
	if !tc.Loop && tc.Window > 0 && !tc.currentTime.Before(tc.StartTime.Add(tc.Window)) {
		tc.mu.Unlock()
		return false
	}
	next, wrapped := tc.wrap(tc.currentTime.Add(tc.Tick))
	if !tc.Loop && tc.Window > 0 {
		if end := tc.StartTime.Add(tc.Window); next.After(end) {
			next = end
		}
	}
	tc.currentTime = next
	tc.elapsed += tc.Tick

	var fired []timer
	pending := tc.timers[:0]
	for _, t := range tc.timers {
		if t.due <= tc.elapsed {
			fired = append(fired, t)
		} else {
			pending = append(pending, t)
		}
	}
	tc.timers = pending
	listeners := append([]func(time.Time){}, tc.listeners...)
	loopListeners := append([]func(time.Time){}, tc.loopListeners...)
	tc.mu.Unlock()

	for _, t := range fired {
		t.ch <- next
	}
	if wrapped {
		for _, fn := range loopListeners {
			fn(next)
		}
	}
	for _, fn := range listeners {
		fn(next)
	}
	return true
}

// Start runs the controller in a separate goroutine until duration of
// simulated time has passed (0 means no limit), the window is exhausted, or
// ctx is done. It returns a channel that is closed when the controller
// finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		tc.currentTime = tc.StartTime
		interval := tc.interval()
		tc.mu.Unlock()

		elapsed := time.Duration(0)

		var tick <-chan time.Time
		if interval > 0 {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}

			if !tc.Step() {
				return
			}
			elapsed += tc.Tick
		}
	}()
	return done
}

// interval is the wall-clock time between ticks; zero means as fast as
// possible. Callers hold tc.mu.
func (tc *TimeController) interval() time.Duration {
	if tc.Mode == Accelerated || tc.Tick <= 0 {
		return 0
	}
	m := tc.Multiplier
	if m <= 0 {
		m = 1
	}
	return time.Duration(float64(tc.Tick) / m)
}

// wrap folds t into [StartTime, StartTime+Window) when looping. Callers hold
// tc.mu.
func (tc *TimeController) wrap(t time.Time) (time.Time, bool) {
	if !tc.Loop || tc.Window <= 0 {
		return t, false
	}
	offset := t.Sub(tc.StartTime)
	if offset >= 0 && offset < tc.Window {
		return t, false
	}
	offset %= tc.Window
	if offset < 0 {
		offset += tc.Window
	}
	return tc.StartTime.Add(offset), true
}
