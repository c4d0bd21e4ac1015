// Package worker provides unique-name background work scheduling with a
// network constraint and exponential backoff, plus the retry workers that
// drain the pending queues.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/bookyo/client/internal/connectivity"
	"github.com/bookyo/client/internal/logging"
)

// Result is the outcome of one work attempt.
type Result int

const (
	// ResultSuccess completes the work; it is not run again.
	ResultSuccess Result = iota
	// ResultRetry reschedules the work after a backoff delay.
	ResultRetry
	// ResultFailure abandons the work permanently.
	ResultFailure
)

// Policy decides what happens when work is enqueued under a name that is
// already scheduled.
type Policy int

const (
	// PolicyKeep leaves the existing work in place and discards the new one.
	PolicyKeep Policy = iota
	// PolicyReplace cancels the existing work and schedules the new one.
	PolicyReplace
)

// Work is one attempt at a unit of background work. It is re-invoked after
// backoff for as long as it returns ResultRetry.
type Work func(ctx context.Context) Result

const (
	// DefaultInitialBackoff is the delay before the first retry.
	DefaultInitialBackoff = 15 * time.Second
	// maxBackoff caps the exponential backoff delay.
	maxBackoff = time.Hour
)

// Scheduler runs named background work. Each name holds at most one unit
// of work at a time, and work only runs while the network is reachable.
type Scheduler struct {
	monitor        connectivity.Monitor
	initialBackoff time.Duration

	mu      sync.Mutex
	tasks   map[string]*task
	wg      sync.WaitGroup
	stopped bool
}

type task struct {
	name   string
	work   Work
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInitialBackoff overrides the first retry delay.
func WithInitialBackoff(d time.Duration) Option {
	return func(s *Scheduler) {
		s.initialBackoff = d
	}
}

// NewScheduler creates a Scheduler gated on the given connectivity monitor.
func NewScheduler(monitor connectivity.Monitor, opts ...Option) *Scheduler {
	s := &Scheduler{
		monitor:        monitor,
		initialBackoff: DefaultInitialBackoff,
		tasks:          make(map[string]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnqueueUnique schedules work under a unique name. With PolicyKeep the
// call is a no-op when the name is already scheduled; with PolicyReplace
// the existing work is cancelled and the new work starts once it has
// returned. Reports whether the work was accepted.
func (s *Scheduler) EnqueueUnique(name string, policy Policy, work Work) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	var prev chan struct{}
	if existing, ok := s.tasks[name]; ok {
		if policy == PolicyKeep {
			logging.Debug("Work already scheduled, keeping existing",
				map[string]interface{}{"name": name})
			return false
		}
		existing.cancel()
		prev = existing.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{name: name, work: work, cancel: cancel, done: make(chan struct{})}
	s.tasks[name] = t

	s.wg.Add(1)
	go s.run(ctx, t, prev)

	logging.Debug("Work scheduled", map[string]interface{}{"name": name})
	return true
}

// Pending reports whether work is currently scheduled under the name.
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Stop cancels all scheduled work and waits for running attempts to
// return. The scheduler accepts no work afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, t := range s.tasks {
		t.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("Work scheduler stopped", nil)
}

func (s *Scheduler) run(ctx context.Context, t *task, prev chan struct{}) {
	defer s.wg.Done()
	defer t.cancel()
	defer s.remove(t)
	defer close(t.done)

	// A replaced run may still be mid-attempt; it has been cancelled, but
	// this run starts only after it returns.
	if prev != nil {
		<-prev
	}

	attempt := 0
	for {
		if !s.awaitNetwork(ctx) {
			return
		}

		switch t.work(ctx) {
		case ResultSuccess:
			return
		case ResultFailure:
			logging.Warn("Work failed permanently",
				map[string]interface{}{"name": t.name})
			return
		case ResultRetry:
			delay := calculateBackoff(s.initialBackoff, attempt)
			attempt++
			logging.Debug("Work will retry", map[string]interface{}{
				"name": t.name, "delay_seconds": delay.Seconds()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

// remove deletes the task's map entry unless a replacement already took
// the name.
func (s *Scheduler) remove(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.tasks[t.name]; ok && current == t {
		delete(s.tasks, t.name)
	}
}

// awaitNetwork blocks until the network is reachable. Reports false when
// the work was cancelled while waiting.
func (s *Scheduler) awaitNetwork(ctx context.Context) bool {
	if s.monitor.IsConnected(ctx) {
		return true
	}

	obsCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for connected := range s.monitor.Observe(obsCtx) {
		if connected {
			return true
		}
	}
	return false
}

// calculateBackoff returns the delay before the given retry attempt:
// initial * 2^attempt, capped at one hour.
func calculateBackoff(initial time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		return maxBackoff
	}
	backoff := initial << uint(attempt)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
