// Package jobs runs the materializer and the pending sweeper on a fixed cadence.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tinoosan/cashflow/internal/service/materializer"
	"github.com/tinoosan/cashflow/internal/service/movement"
)

type Materializer interface {
	RunForToday(ctx context.Context) (materializer.Report, error)
}

type Sweeper interface {
	ApplyPending(ctx context.Context) (movement.SweepReport, error)
}

// Runner serializes runs of each job, whether they come from the ticker or
// from an HTTP trigger.
type Runner struct {
	mat      Materializer
	sweep    Sweeper
	interval time.Duration
	log      *slog.Logger

	matMu   sync.Mutex
	sweepMu sync.Mutex
}

func NewRunner(mat Materializer, sweep Sweeper, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{mat: mat, sweep: sweep, interval: interval, log: logger}
}

// Run executes both jobs once, then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("job runner started", "interval", r.interval.String())
	r.RunOnce(ctx)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("job runner stopped")
			return nil
		case <-t.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce materializes today's occurrences and then sweeps pending movements.
// Errors are logged; the next tick retries.
func (r *Runner) RunOnce(ctx context.Context) {
	if _, err := r.Materialize(ctx); err != nil {
		r.log.Error("materializer run failed", "err", err)
	}
	if _, err := r.ApplyPending(ctx); err != nil {
		r.log.Error("pending sweep failed", "err", err)
	}
}

func (r *Runner) Materialize(ctx context.Context) (materializer.Report, error) {
	r.matMu.Lock()
	defer r.matMu.Unlock()
	start := time.Now()
	rep, err := r.mat.RunForToday(ctx)
	jobDuration.WithLabelValues(jobMaterialize).Observe(time.Since(start).Seconds())
	jobRunsTotal.WithLabelValues(jobMaterialize, outcome(err)).Inc()
	observeItems(jobMaterialize, "materialized", rep.Materialized)
	observeItems(jobMaterialize, "skipped", rep.Skipped)
	observeItems(jobMaterialize, "failed", rep.Failed)
	return rep, err
}

func (r *Runner) ApplyPending(ctx context.Context) (movement.SweepReport, error) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()
	start := time.Now()
	rep, err := r.sweep.ApplyPending(ctx)
	jobDuration.WithLabelValues(jobApplyPending).Observe(time.Since(start).Seconds())
	jobRunsTotal.WithLabelValues(jobApplyPending, outcome(err)).Inc()
	observeItems(jobApplyPending, "applied", rep.Applied)
	observeItems(jobApplyPending, "failed", rep.Failed)
	observeItems(jobApplyPending, "unchanged", rep.Scanned-rep.Applied-rep.Failed)
	return rep, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
