// Package button implements the debounced SELECT button poller. Presses are
// latched on the pin edge, so a press fully contained between two polls is
// still observed.
package button

import (
	"context"
	"sync"
	"time"

	"romcart/emu/log"
	"romcart/hw/gpio"
)

const (
	DefaultDebounce  = 50 * time.Millisecond
	DefaultLongPress = 2 * time.Second

	// releasePollInterval paces the blocking WaitRelease loop.
	releasePollInterval = 10 * time.Millisecond
)

type Config struct {
	Debounce  time.Duration
	LongPress time.Duration
}

type Button struct {
	pin *gpio.Pin
	cfg Config

	mu         sync.Mutex
	down       bool
	downAt     time.Time
	longFired  bool
	shortLatch bool
	onLong     func()

	now func() time.Time // test seam
}

func New(pin *gpio.Pin, cfg Config) *Button {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.LongPress == 0 {
		cfg.LongPress = DefaultLongPress
	}
	return &Button{pin: pin, cfg: cfg, now: time.Now}
}

// SetLongPressFunc registers the callback invoked once when the button has
// been held past the long-press threshold (factory reset in practice).
func (b *Button) SetLongPressFunc(f func()) {
	b.mu.Lock()
	b.onLong = f
	b.mu.Unlock()
}

// Poll samples the pin and updates the press state. Safe to call at any
// rate from a busy loop.
func (b *Button) Poll() {
	level, rising := b.pin.Poll()

	b.mu.Lock()
	var fireLong bool
	switch {
	case !b.down && rising > 0 && !level:
		// Press began and ended entirely between two polls. Its duration is
		// unknowable but necessarily shorter than the long threshold.
		b.shortLatch = true
	case !b.down && (rising > 0 || level):
		b.down = true
		b.downAt = b.now()
		b.longFired = false
	case b.down && level:
		if !b.longFired && b.now().Sub(b.downAt) >= b.cfg.LongPress {
			b.longFired = true
			fireLong = b.onLong != nil
		}
	case b.down && !level:
		held := b.now().Sub(b.downAt)
		b.down = false
		if !b.longFired && held >= b.cfg.Debounce {
			b.shortLatch = true
		}
	}
	onLong := b.onLong
	b.mu.Unlock()

	if fireLong {
		log.ModButton.InfoZ("long press").End()
		onLong()
	}
}

// DetectPush polls the pin and consumes a completed short press, if any.
func (b *Button) DetectPush() bool {
	b.Poll()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shortLatch {
		b.shortLatch = false
		return true
	}
	return false
}

// WaitRelease blocks until the button is up.
func (b *Button) WaitRelease(ctx context.Context) error {
	for b.pin.Get() {
		select {
		case <-time.After(releasePollInterval):
			b.Poll()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
