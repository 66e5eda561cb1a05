// Package server runs the daemon: long-lived background components plus
// the staged scheduler that executes sync, organize and cleanup on their
// configured intervals, one stage at a time.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stage is one periodically executed pipeline stage. A non-positive
// interval disables it.
type Stage struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Background is a component that runs for the daemon's whole lifetime,
// like the transfer watcher.
type Background struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner manages the daemon's components. Stages never overlap: the
// library and the ledger see one writer at a time.
type Runner struct {
	stages     []Stage
	background []Background
	logger     *slog.Logger

	mu sync.Mutex // serializes stage execution
}

// NewRunner creates a new runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// AddStage registers a scheduled stage.
func (r *Runner) AddStage(s Stage) {
	r.stages = append(r.stages, s)
}

// AddBackground registers a lifetime component.
func (r *Runner) AddBackground(b Background) {
	r.background = append(r.background, b)
}

// Run starts everything and blocks until the context is canceled or a
// component fails. Cancellation is a clean shutdown, not an error.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, b := range r.background {
		r.logger.Info("starting component", "name", b.Name)
		g.Go(func() error { return b.Run(gctx) })
	}
	for _, s := range r.stages {
		if s.Interval <= 0 {
			r.logger.Info("stage disabled", "stage", s.Name)
			continue
		}
		r.logger.Info("scheduling stage", "stage", s.Name, "interval", s.Interval)
		g.Go(func() error { return r.runStage(gctx, s) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runStage executes the stage once at startup and then on its interval.
func (r *Runner) runStage(ctx context.Context, s Stage) error {
	r.execute(ctx, s)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.execute(ctx, s)
		}
	}
}

// execute runs one stage pass under the runner lock. A failed pass is
// logged and waits for the next tick; it never brings the daemon down.
func (r *Runner) execute(ctx context.Context, s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	log := r.logger.With("stage", s.Name)
	start := time.Now()
	log.Info("stage started")
	if err := s.Run(ctx); err != nil {
		log.Error("stage failed", "error", err, "duration", time.Since(start))
		return
	}
	log.Info("stage finished", "duration", time.Since(start))
}
