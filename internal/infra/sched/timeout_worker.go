package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"portrait-ai/internal/domain/ports/repository"
	"portrait-ai/internal/usecase"
)

// TimeoutWorker periodically sweeps jobs stuck in pending because the
// provider never called back, and force-finishes them as timed_out through
// the same reconcile path a webhook would take.
type TimeoutWorker struct {
	interval time.Duration
	timeout  time.Duration
	jobs     repository.TrainingJobRepository
	rec      usecase.ReconcileUseCase
	log      *zerolog.Logger
}

func NewTimeoutWorker(interval, timeout time.Duration, jobs repository.TrainingJobRepository, rec usecase.ReconcileUseCase, logger *zerolog.Logger) *TimeoutWorker {
	l := logger.With().Str("component", "TimeoutWorker").Logger()
	return &TimeoutWorker{
		interval: interval,
		timeout:  timeout,
		jobs:     jobs,
		rec:      rec,
		log:      &l,
	}
}

func (w *TimeoutWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("timeout", w.timeout).Msg("Starting timeout worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping timeout worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.sweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("timeout sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale pending jobs timed out")
			}
		}
	}
}

func (w *TimeoutWorker) sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.timeout)
	stale, err := w.jobs.FindPendingOlderThan(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range stale {
		if err := w.rec.TimeOut(ctx, job.ID); err != nil {
			w.log.Error().Err(err).Str("job_id", job.ID).Msg("time out job")
			continue
		}
		n++
	}
	return n, nil
}
