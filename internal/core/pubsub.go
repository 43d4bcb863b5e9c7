package core

import (
	"sync"

	"github.com/olyamironova/oms-engine/internal/domain"
)

// fillPubSub fans fills out to subscribers. Slow subscribers miss fills
// rather than block the step.
type fillPubSub struct {
	mu   sync.Mutex
	subs map[chan domain.Fill]struct{}
}

func newFillPubSub() *fillPubSub {
	return &fillPubSub{subs: make(map[chan domain.Fill]struct{})}
}

func (p *fillPubSub) subscribe(buffer int) chan domain.Fill {
	ch := make(chan domain.Fill, buffer)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[ch] = struct{}{}
	return ch
}

func (p *fillPubSub) unsubscribe(ch chan domain.Fill) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subs[ch]; ok {
		delete(p.subs, ch)
		close(ch)
	}
}

func (p *fillPubSub) publish(f domain.Fill) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- f:
		default:
		}
	}
}
