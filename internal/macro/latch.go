package macro

import "sync"

// Latch is a boolean flag tasks can wait on. Waiters receive a channel
// that is closed when the latch becomes set; clearing the latch installs a
// fresh open channel for the next round of waiters.
type Latch struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// NewLatch creates a latch in the given initial state.
func NewLatch(set bool) *Latch {
	l := &Latch{set: set, ch: make(chan struct{})}
	if set {
		close(l.ch)
	}
	return l
}

// Set sets the latch and releases all current waiters.
func (l *Latch) Set() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		return
	}
	l.set = true
	close(l.ch)
}

// Clear resets the latch.
func (l *Latch) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set {
		return
	}
	l.set = false
	l.ch = make(chan struct{})
}

// IsSet reports the current state.
func (l *Latch) IsSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set
}

// Wait returns a channel that is closed once the latch is set. If the
// latch is already set the channel is closed already.
func (l *Latch) Wait() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}
