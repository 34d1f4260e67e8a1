package gpio

import "sync"

// Pin is a single input pin with edge memory: rising edges are counted so a
// poller sampling the pin at a slow rate still observes a pulse that began
// and ended between two polls.
type Pin struct {
	mu     sync.Mutex
	level  bool
	rising int
}

func (p *Pin) Set(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if level && !p.level {
		p.rising++
	}
	p.level = level
}

func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Poll returns the current level plus the number of rising edges seen since
// the previous call, and clears the edge counter.
func (p *Pin) Poll() (level bool, rising int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	level, rising = p.level, p.rising
	p.rising = 0
	return level, rising
}
