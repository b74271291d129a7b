package engine

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs a callback periodically until cancelled.
//
// Callbacks for one task must never overlap: a tick that is still running
// when the next one is due causes that next one to be skipped.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler drives each task from its own time.Ticker goroutine.
// time.Ticker drops ticks for slow receivers, so late ticks are skipped rather
// than queued.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()
	return cancel
}

// ManualScheduler fires tasks only when told to. It stands in for the wall
// clock wherever tick timing must be deterministic.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
}

func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (s *ManualScheduler) Every(_ time.Duration, fn func()) func() {
	t := &manualTask{fn: fn}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// Advance fires every live task n times, in registration order.
func (s *ManualScheduler) Advance(n int) {
	for i := 0; i < n; i++ {
		for _, fn := range s.snapshot(false) {
			fn()
		}
	}
}

// FireAll fires every task ever registered, cancelled ones included, as if
// their callbacks were already in flight when they were cancelled.
func (s *ManualScheduler) FireAll() {
	for _, fn := range s.snapshot(true) {
		fn()
	}
}

// Live returns the number of tasks that have not been cancelled.
func (s *ManualScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) snapshot(all bool) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(), 0, len(s.tasks))
	for _, t := range s.tasks {
		if all || !t.cancelled {
			out = append(out, t.fn)
		}
	}
	return out
}
