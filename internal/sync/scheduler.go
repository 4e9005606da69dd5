package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// PassFunc executes one upload pass. The error return is reserved for
// internal faults; per-record failures live in the result.
type PassFunc func(ctx context.Context) (PassResult, error)

// Scheduler drives the self-chaining pass loop: a single run loop consumes
// a capacity-one trigger channel, so at most one pass is ever in flight and
// bursts of triggers coalesce into one. While the chain is enabled, the
// next invocation is armed with a fixed delay only after a pass completes;
// arming replaces any previously armed invocation. Cancel permanently
// breaks the chain until Enable.
type Scheduler struct {
	pass       PassFunc
	interval   time.Duration
	maxRetries uint64
	minBackoff time.Duration
	onStart    func()
	onResult   func(PassResult, error)
	logger     *slog.Logger

	kick chan struct{}

	mu      stdsync.Mutex
	timer   *time.Timer
	enabled bool
}

// NewScheduler creates a Scheduler. The chain starts disabled: manual
// triggers run passes, but nothing is re-armed until Enable. onStart and
// onResult may be nil.
func NewScheduler(pass PassFunc, interval time.Duration, maxRetries uint64,
	minBackoff time.Duration, onStart func(), onResult func(PassResult, error),
	logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pass:       pass,
		interval:   interval,
		maxRetries: maxRetries,
		minBackoff: minBackoff,
		onStart:    onStart,
		onResult:   onResult,
		logger:     logger,
		kick:       make(chan struct{}, 1),
	}
}

// Run is the scheduler's single run loop. It blocks until the context is
// canceled, which also disarms any pending invocation. A fatal pass (panic
// or internal fault) is logged and breaks the chain: the loop keeps
// serving manual triggers, but no future invocation is re-armed until
// Enable is called again.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.disarm()
			return
		case <-s.kick:
		}

		if fatal := s.runGuarded(ctx); fatal {
			s.mu.Lock()
			s.enabled = false
			s.mu.Unlock()

			s.logger.Error("sync chain broken by fatal pass")

			continue
		}

		s.rearm()
	}
}

// Trigger requests a pass now. Triggers coalesce: if one is already queued
// the call is a no-op, and a queued trigger replaces any armed future
// invocation. Safe to call from any goroutine.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Enable turns the chain on and arms the next invocation one interval out.
func (s *Scheduler) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = true
	s.armLocked()
}

// Cancel turns the chain off: the armed invocation is disarmed and any
// queued trigger is dropped. An in-flight pass is not interrupted; it
// simply will not re-arm.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.enabled = false
	s.stopTimerLocked()
	s.mu.Unlock()

	select {
	case <-s.kick:
	default:
	}
}

// Enabled reports whether the chain is currently on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enabled
}

// runGuarded executes one pass under panic recovery and the retry policy.
// Returns true for a fatal outcome that must break the chain.
func (s *Scheduler) runGuarded(ctx context.Context) (fatal bool) {
	defer func() {
		if r := recover(); r != nil {
			fatal = true

			err := fmt.Errorf("sync: pass panicked: %v", r)
			s.logger.Error("sync pass panicked", slog.Any("panic", r))

			if s.onResult != nil {
				s.onResult(PassResult{}, err)
			}
		}
	}()

	if s.onStart != nil {
		s.onStart()
	}

	var last PassResult

	err := retry.Do(ctx, retry.WithMaxRetries(s.maxRetries, linearBackoff(s.minBackoff)),
		func(ctx context.Context) error {
			result, err := s.pass(ctx)
			last = result

			if err != nil {
				return err
			}

			if !result.Success() {
				return retry.RetryableError(ErrAllFailed)
			}

			return nil
		})

	if s.onResult != nil {
		s.onResult(last, err)
	}

	if err == nil || errors.Is(err, ErrAllFailed) || ctx.Err() != nil {
		// Retry exhaustion is not fatal: the records stay pending and the
		// next chained pass picks them up.
		return false
	}

	s.logger.Error("sync pass failed", slog.String("error", err.Error()))

	return true
}

// rearm arms the next chained invocation if the chain is enabled. Called
// only from the run loop, after a completed pass.
func (s *Scheduler) rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}

	s.armLocked()
}

func (s *Scheduler) armLocked() {
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.interval, s.Trigger)
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
}

// linearBackoff grows the wait linearly with the attempt number: base after
// the first failure, 2*base after the second, and so on.
func linearBackoff(base time.Duration) retry.Backoff {
	var attempt int64

	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * base, false
	})
}
