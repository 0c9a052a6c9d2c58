package hal

import (
	"context"
	"math/rand"
	"sync"
)

// SimAnalog is a random-walk analog sensor. Each read drifts the value
// by at most jitter and clamps it to [min, max].
type SimAnalog struct {
	mu     sync.Mutex
	value  float64
	jitter float64
	min    float64
	max    float64
	rng    *rand.Rand
}

func NewSimAnalog(initial, jitter, min, max float64, seed int64) *SimAnalog {
	return &SimAnalog{
		value:  initial,
		jitter: jitter,
		min:    min,
		max:    max,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (s *SimAnalog) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value += (s.rng.Float64()*2 - 1) * s.jitter
	if s.value < s.min {
		s.value = s.min
	}
	if s.value > s.max {
		s.value = s.max
	}
	return s.value, nil
}

// SimBattery drains a fixed fraction of a percent per read, starting
// full.
type SimBattery struct {
	mu       sync.Mutex
	percent  float64
	drainPer float64
}

func NewSimBattery(drainPerRead float64) *SimBattery {
	if drainPerRead < 0 {
		drainPerRead = 0
	}
	return &SimBattery{percent: 100, drainPer: drainPerRead}
}

func (b *SimBattery) Read() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.percent -= b.drainPer
	if b.percent < 0 {
		b.percent = 0
	}
	return float64(int(b.percent)), nil
}

// SimSwitch is a digital input driven from the outside (tests, demo
// drivers). Set flips the state and signals every edge watcher.
type SimSwitch struct {
	mu    sync.Mutex
	state bool
	subs  []chan struct{}
}

func NewSimSwitch(initial bool) *SimSwitch {
	return &SimSwitch{state: initial}
}

func (s *SimSwitch) Read() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Set changes the pin state; a no-op write produces no edge.
func (s *SimSwitch) Set(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == v {
		return
	}
	s.state = v
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default: // watcher already has a pending edge
		}
	}
}

func (s *SimSwitch) Edges(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()

	return ch
}
