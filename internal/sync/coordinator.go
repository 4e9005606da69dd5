package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cidadao-activo/sca-go/internal/pubsub"
)

// Default scheduling policy. The chain interval matches the original
// engine's one-minute cadence.
const (
	DefaultInterval   = time.Minute
	DefaultMaxRetries = 5
	DefaultMinBackoff = 10 * time.Second
)

// PendingCounter is the slice of the repository the coordinator needs for
// its pending-count observable.
type PendingCounter interface {
	PendingCount(ctx context.Context) (int, error)
	SubscribePendingCount() (<-chan int, func())
}

// Config wires a Coordinator. Source, Uploader, Monitor, Pending and Logger
// are required; a repository satisfies both Source and Pending. Zero
// scheduling values take the package defaults.
type Config struct {
	Source   RecordSource
	Uploader Uploader
	Monitor  Monitor
	Pending  PendingCounter
	UserID   int64

	Interval   time.Duration
	MaxRetries uint64
	MinBackoff time.Duration

	Logger *slog.Logger
}

func (c *Config) withDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}

	if c.MinBackoff <= 0 {
		c.MinBackoff = DefaultMinBackoff
	}
}

// Coordinator is the engine's front door: it owns the scheduler, gates
// manual triggers on connectivity, and publishes the observable status.
// Construct with NewCoordinator, start with Open, stop with Close.
type Coordinator struct {
	cfg    Config
	sched  *Scheduler
	status *pubsub.Value[Status]
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator validates the config and builds a stopped Coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Source == nil || cfg.Uploader == nil || cfg.Monitor == nil ||
		cfg.Pending == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("sync: coordinator config incomplete")
	}

	cfg.withDefaults()

	c := &Coordinator{
		cfg:    cfg,
		status: pubsub.NewValue(StatusIdle),
		logger: cfg.Logger,
	}

	worker := NewWorker(cfg.Source, cfg.Uploader, cfg.UserID, cfg.Logger)

	c.sched = NewScheduler(worker.RunPass, cfg.Interval, cfg.MaxRetries,
		cfg.MinBackoff, c.onPassStart, c.onPassResult, cfg.Logger)

	return c, nil
}

// Open starts the scheduler's run loop. The auto-sync chain stays disabled
// until EnableAutoSync; manual StartSync works immediately.
func (c *Coordinator) Open(ctx context.Context) error {
	if c.done != nil {
		return fmt.Errorf("sync: coordinator already open")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.sched.Run(runCtx)
	}()

	c.logger.Info("sync coordinator started",
		slog.Duration("interval", c.cfg.Interval),
		slog.Uint64("max_retries", c.cfg.MaxRetries),
	)

	return nil
}

// Close stops the run loop and waits for any in-flight pass to finish
// winding down. Idempotent.
func (c *Coordinator) Close() error {
	if c.done == nil {
		return nil
	}

	c.sched.Cancel()
	c.cancel()
	<-c.done

	c.cancel = nil
	c.done = nil
	c.status.Set(StatusIdle)

	c.logger.Info("sync coordinator stopped")

	return nil
}

// StartSync requests a pass now. Without connectivity this is a fast no-op
// that only publishes NO_NETWORK; with connectivity the trigger coalesces
// into the scheduler's queue.
func (c *Coordinator) StartSync() {
	if !c.cfg.Monitor.Reachable() {
		c.logger.Info("sync requested while offline")
		c.status.Set(StatusNoNetwork)

		return
	}

	c.status.Set(StatusSyncing)
	c.sched.Trigger()
}

// StopSync cancels the queued trigger and the armed chain invocation. An
// in-flight pass finishes but does not re-arm.
func (c *Coordinator) StopSync() {
	c.sched.Cancel()
	c.status.Set(StatusIdle)
}

// EnableAutoSync turns the chain on: the next pass is armed one interval
// out, and every completed pass re-arms the next.
func (c *Coordinator) EnableAutoSync() {
	c.sched.Enable()
}

// DisableAutoSync is StopSync under the name the chain semantics deserve.
func (c *Coordinator) DisableAutoSync() {
	c.StopSync()
}

// AutoSyncEnabled reports whether the chain is on.
func (c *Coordinator) AutoSyncEnabled() bool {
	return c.sched.Enabled()
}

// Status returns the current engine status.
func (c *Coordinator) Status() Status {
	return c.status.Get()
}

// SubscribeStatus returns a live status view: the current value
// immediately, then every transition. Intermediate values may conflate
// under a slow reader; the latest value always arrives.
func (c *Coordinator) SubscribeStatus() (<-chan Status, func()) {
	return c.status.Subscribe()
}

// PendingCount returns the number of records awaiting upload.
func (c *Coordinator) PendingCount(ctx context.Context) (int, error) {
	return c.cfg.Pending.PendingCount(ctx)
}

// SubscribePendingCount returns a live pending-count view.
func (c *Coordinator) SubscribePendingCount() (<-chan int, func()) {
	return c.cfg.Pending.SubscribePendingCount()
}

func (c *Coordinator) onPassStart() {
	c.status.Set(StatusSyncing)
}

func (c *Coordinator) onPassResult(result PassResult, err error) {
	if err != nil {
		c.status.Set(StatusError)
		return
	}

	c.logger.Debug("pass result",
		slog.Int("attempted", result.Attempted),
		slog.Int("succeeded", result.Succeeded),
	)

	c.status.Set(StatusSuccess)
}
