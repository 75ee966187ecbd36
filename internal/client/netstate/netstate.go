// Package netstate tracks whether the server is reachable. Connectivity is a
// hint, not a gate: a direct call may still fail while netstate says online,
// and the caller falls back to the queue in that case.
package netstate

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

// Checker probes server reachability once.
type Checker interface {
	Probe(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Probe(ctx context.Context) error { return f(ctx) }

// Config tunes the watcher's probing cadence.
type Config struct {
	// ProbeBase is the first delay of the fibonacci re-probe sequence used
	// while offline.
	ProbeBase time.Duration

	// ProbeCap bounds the re-probe delay growth.
	ProbeCap time.Duration

	// Interval is the poll period while online.
	Interval time.Duration

	// OnOnline fires on every offline-to-online transition. Typically wired
	// to kick a sync pass.
	OnOnline func()
}

// DefaultConfig returns the watcher defaults.
func DefaultConfig() Config {
	return Config{
		ProbeBase: time.Second,
		ProbeCap:  30 * time.Second,
		Interval:  15 * time.Second,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.ProbeBase <= 0 {
		c.ProbeBase = def.ProbeBase
	}
	if c.ProbeCap <= 0 {
		c.ProbeCap = def.ProbeCap
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	return c
}

// Watcher maintains the current connectivity verdict and notifies on the
// offline-to-online edge.
type Watcher struct {
	checker Checker
	logger  *slog.Logger
	cfg     Config
	online  atomic.Bool
}

// NewWatcher creates a watcher. It starts offline until the first successful
// probe.
func NewWatcher(checker Checker, logger *slog.Logger, cfg Config) *Watcher {
	return &Watcher{
		checker: checker,
		logger:  logger,
		cfg:     cfg.normalize(),
	}
}

// Online reports the last known verdict.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// SetOnOnline replaces the offline-to-online callback. Must be set before
// Run starts; the watch loop reads it without locking.
func (w *Watcher) SetOnOnline(fn func()) {
	w.cfg.OnOnline = fn
}

// Check runs a single probe and updates the verdict. Used for one-shot
// commands that do not run the watch loop.
func (w *Watcher) Check(ctx context.Context) bool {
	if err := w.checker.Probe(ctx); err != nil {
		w.markOffline(err)
		return false
	}
	w.markOnline()
	return true
}

// MarkOffline forces the verdict to offline. Called by the dispatcher when a
// direct call fails at the transport level, so the next probe cycle starts
// from the offline path.
func (w *Watcher) MarkOffline() {
	w.markOffline(nil)
}

// Run probes until ctx is cancelled. While offline it re-probes with capped
// fibonacci backoff; while online it polls at the configured interval.
// Always returns the ctx error.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		backoff := retry.WithCappedDuration(w.cfg.ProbeCap, retry.NewFibonacci(w.cfg.ProbeBase))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := w.checker.Probe(ctx); err != nil {
				w.markOffline(err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		w.markOnline()

		if err := w.pollWhileOnline(ctx); err != nil {
			return err
		}
	}
}

// pollWhileOnline probes at the configured interval until a probe fails or
// ctx is cancelled.
func (w *Watcher) pollWhileOnline(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.checker.Probe(ctx); err != nil {
				w.markOffline(err)
				return nil
			}
		}
	}
}

func (w *Watcher) markOnline() {
	if w.online.CompareAndSwap(false, true) {
		w.logger.Info("Server reachable, going online")
		if w.cfg.OnOnline != nil {
			w.cfg.OnOnline()
		}
	}
}

func (w *Watcher) markOffline(err error) {
	if w.online.CompareAndSwap(true, false) {
		w.logger.Warn("Server unreachable, going offline", "error", err)
	}
}
