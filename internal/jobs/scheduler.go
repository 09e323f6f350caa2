// Package jobs runs the periodic background work: the settlement sweep and
// the reconciliation pass. Each loop is a plain ticker goroutine that stops
// with the process context.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/craftlink/craftlink-backend/internal/services"
)

type Scheduler struct {
	settle *services.SettlementService
	recon  *services.ReconciliationService

	sweepEvery time.Duration
	reconEvery time.Duration

	wg sync.WaitGroup
}

func NewScheduler(settle *services.SettlementService, recon *services.ReconciliationService, sweepEvery, reconEvery time.Duration) *Scheduler {
	return &Scheduler{
		settle:     settle,
		recon:      recon,
		sweepEvery: sweepEvery,
		reconEvery: reconEvery,
	}
}

// Start launches the background loops. They exit when ctx is cancelled;
// Wait blocks until both have drained.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, "settlement_sweep", s.sweepEvery, func(ctx context.Context) {
		sum := s.settle.AutoSettlePendingEscrows(ctx)
		if sum.Processed > 0 {
			slog.Info("settlement sweep finished",
				"processed", sum.Processed, "succeeded", sum.Succeeded, "failed", sum.Failed)
		}
	})
	go s.loop(ctx, "reconciliation", s.reconEvery, func(ctx context.Context) {
		report, err := s.recon.Run(ctx, nil)
		if err != nil {
			slog.Error("scheduled reconciliation failed", "err", err)
			return
		}
		slog.Info("reconciliation finished",
			"report_id", report.ID, "issues", report.Summary.TotalIssues)
	})
}

func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, run func(context.Context)) {
	defer s.wg.Done()
	if every <= 0 {
		slog.Info("background job disabled", "job", name)
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run(ctx)
		}
	}
}
