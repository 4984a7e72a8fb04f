package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinoosan/cashflow/internal/service/materializer"
	"github.com/tinoosan/cashflow/internal/service/movement"
)

type fakeMat struct{ calls atomic.Int32 }

func (f *fakeMat) RunForToday(context.Context) (materializer.Report, error) {
	f.calls.Add(1)
	return materializer.Report{Scanned: 2, Materialized: 1, Skipped: 1}, nil
}

type fakeSweep struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSweep) ApplyPending(context.Context) (movement.SweepReport, error) {
	f.calls.Add(1)
	return movement.SweepReport{}, f.err
}

func TestRunner_RunsAtStartAndOnTicks(t *testing.T) {
	mat := &fakeMat{}
	sweep := &fakeSweep{err: errors.New("db down")}
	r := NewRunner(mat, sweep, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for mat.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop after cancel")
	}
	if mat.calls.Load() < 3 {
		t.Fatalf("expected at least 3 materializer runs, got %d", mat.calls.Load())
	}
	// A failing sweep does not stop the loop.
	if sweep.calls.Load() < 3 {
		t.Fatalf("expected at least 3 sweeps, got %d", sweep.calls.Load())
	}
}

func TestRunner_ManualTriggersReturnReports(t *testing.T) {
	r := NewRunner(&fakeMat{}, &fakeSweep{}, 0, nil)
	rep, err := r.Materialize(context.Background())
	if err != nil || rep.Materialized != 1 {
		t.Fatalf("materialize: %+v %v", rep, err)
	}
	if _, err := r.ApplyPending(context.Background()); err != nil {
		t.Fatalf("apply pending: %v", err)
	}
}
