// Package led drives the status LED.
package led

import (
	"sync"
	"time"
)

const blinkPeriod = 700 * time.Millisecond

type LED struct {
	mu   sync.Mutex
	lit  bool
	next time.Time
}

func (l *LED) On() { l.set(true) }

func (l *LED) Off() { l.set(false) }

func (l *LED) set(lit bool) {
	l.mu.Lock()
	l.lit = lit
	l.mu.Unlock()
}

func (l *LED) Lit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lit
}

// Blink toggles the LED when the blink period has elapsed. Called from a
// busy loop, typically the operator-visible error loop.
func (l *LED) Blink() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.After(l.next) {
		l.lit = !l.lit
		l.next = now.Add(blinkPeriod)
	}
}
