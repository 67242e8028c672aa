package service

import (
	"sync"
	"time"
)

// timerRegistry tracks the pending fire-once timer per party id. The engine
// never cancels a scheduled transition (fired callbacks re-validate status
// instead), but keying by id keeps cancellation possible and lets shutdown
// stop everything cleanly.
type timerRegistry struct {
	mu        sync.Mutex
	timers    map[string]*time.Timer
	afterFunc func(time.Duration, func()) *time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{
		timers:    make(map[string]*time.Timer),
		afterFunc: time.AfterFunc,
	}
}

// Schedule arms a timer for the given party id, replacing any pending one.
// A party has at most one pending transition (check-in timeout or service
// completion), so one slot per id is enough.
func (r *timerRegistry) Schedule(id string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.timers[id]; ok {
		prev.Stop()
	}
	if d < 0 {
		d = 0
	}
	r.timers[id] = r.afterFunc(d, func() {
		r.remove(id)
		fn()
	})
}

// Cancel stops the pending timer for a party id, reporting whether one was
// pending.
func (r *timerRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	timer, ok := r.timers[id]
	if !ok {
		return false
	}
	delete(r.timers, id)
	return timer.Stop()
}

// StopAll cancels every pending timer. Used on shutdown.
func (r *timerRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}

// Pending reports how many timers are armed.
func (r *timerRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *timerRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, id)
}
