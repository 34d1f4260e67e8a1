// Package sched is the firmware's cooperative scheduler: a single-threaded
// polling loop with a fixed tick. Registered pollers run once per tick, and
// the only suspension points of the firmware timeline are the explicit
// Sleep and WaitUntil yields below. The hardware-clocked bus timeline runs
// elsewhere and owes nothing to this loop.
package sched

import (
	"context"
	"sync"
	"time"
)

const DefaultTick = 100 * time.Millisecond

type Loop struct {
	tick time.Duration

	mu      sync.Mutex
	pollers []func()
}

func New(tick time.Duration) *Loop {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Loop{tick: tick}
}

func (l *Loop) Tick() time.Duration { return l.tick }

// AddPoller registers f to run once per tick while the loop is suspended in
// Sleep or WaitUntil.
func (l *Loop) AddPoller(f func()) {
	l.mu.Lock()
	l.pollers = append(l.pollers, f)
	l.mu.Unlock()
}

func (l *Loop) poll() {
	l.mu.Lock()
	pollers := l.pollers
	l.mu.Unlock()
	for _, f := range pollers {
		f()
	}
}

// Sleep yields for d, running pollers every tick.
func (l *Loop) Sleep(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if err := l.sleepTick(ctx, min(remaining, l.tick)); err != nil {
			return err
		}
		l.poll()
	}
}

// WaitUntil yields until cond holds, checking once per tick. It is
// deliberately unbounded: operator waits have no timeout.
func (l *Loop) WaitUntil(ctx context.Context, cond func() bool) error {
	for {
		if cond() {
			return nil
		}
		if err := l.sleepTick(ctx, l.tick); err != nil {
			return err
		}
		l.poll()
	}
}

// WaitUntilTimeout is WaitUntil bounded by d. It reports whether cond held
// before the timeout.
func (l *Loop) WaitUntilTimeout(ctx context.Context, cond func() bool, d time.Duration) (bool, error) {
	deadline := time.Now().Add(d)
	for {
		if cond() {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := l.sleepTick(ctx, l.tick); err != nil {
			return false, err
		}
		l.poll()
	}
}

func (l *Loop) sleepTick(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
