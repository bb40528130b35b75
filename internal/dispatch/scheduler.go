package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"docchaser/internal/shared/metrics"
	"docchaser/internal/shared/telemetry"
)

// Passer runs one dispatch pass.
type Passer interface {
	RunPass(ctx context.Context) Summary
}

// Scheduler runs passes on a ticker and on demand, never more than one at a
// time. Ticks and triggers that arrive while a pass runs are dropped.
type Scheduler struct {
	passer   Passer
	interval time.Duration

	running atomic.Bool
	started atomic.Bool
	signal  chan struct{}
	wg      sync.WaitGroup

	mu   sync.Mutex
	last *Summary
}

// NewScheduler returns a Scheduler that runs passer every interval once
// started.
func NewScheduler(passer Passer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		passer:   passer,
		interval: interval,
		signal:   make(chan struct{}),
	}
}

// Start launches the loop and runs an immediate pass. It returns false if the
// loop was already started. The loop stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) bool {
	if !s.started.CompareAndSwap(false, true) {
		return false
	}
	telemetry.Info("dispatch.scheduler.started", map[string]any{"interval": s.interval.String()})
	s.wg.Add(2)
	go s.consume(ctx)
	go s.tick(ctx)
	return true
}

// Trigger asks the loop for a pass without blocking. It returns false when
// the loop is busy or not started.
func (s *Scheduler) Trigger() bool {
	select {
	case s.signal <- struct{}{}:
		return true
	default:
		metrics.IncPassSkipped()
		return false
	}
}

// RunNow runs a pass synchronously. It returns false without running when
// another pass is in flight.
func (s *Scheduler) RunNow(ctx context.Context) (Summary, bool) {
	return s.runGuarded(ctx)
}

// IsRunning reports whether a pass is in flight.
func (s *Scheduler) IsRunning() bool { return s.running.Load() }

// Started reports whether Start has been called.
func (s *Scheduler) Started() bool { return s.started.Load() }

// Interval returns the tick interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// LastSummary returns the summary of the most recent completed pass.
func (s *Scheduler) LastSummary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Summary{}, false
	}
	return *s.last, true
}

// Wait blocks until the loop goroutines exit after ctx cancellation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) consume(ctx context.Context) {
	defer s.wg.Done()
	s.runGuarded(ctx)
	for {
		select {
		case <-ctx.Done():
			telemetry.Info("dispatch.scheduler.stopped", nil)
			return
		case <-s.signal:
			s.runGuarded(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Trigger()
		}
	}
}

func (s *Scheduler) runGuarded(ctx context.Context) (Summary, bool) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.IncPassSkipped()
		return Summary{}, false
	}
	defer s.running.Store(false)

	sum := s.passer.RunPass(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.last = &sum
	s.mu.Unlock()
	return sum, true
}
