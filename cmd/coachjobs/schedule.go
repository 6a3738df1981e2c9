package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/coach"
	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/flightrecorder"
)

const (
	nightlyInterval = 24 * time.Hour
	weeklyInterval  = time.Hour
)

type jobRunner struct {
	runner   *coach.Runner
	recorder *flightrecorder.Recorder
	logger   *slog.Logger
}

func (j jobRunner) run(ctx context.Context, job string) (coach.BatchResult, error) {
	var (
		result coach.BatchResult
		err    error
	)
	start := time.Now()
	switch job {
	case coach.JobNightly:
		result, err = j.runner.RunNightly(ctx)
	case coach.JobWeekly:
		result, err = j.runner.RunWeekly(ctx)
	default:
		return coach.BatchResult{}, errors.Wrap(errUnknownJob, "run job", slog.String("job", job))
	}
	j.recorder.ObserveRun(ctx, job, time.Since(start))
	if err != nil {
		return coach.BatchResult{}, errors.Wrap(err, "run job", slog.String("job", job))
	}
	return result, nil
}

// schedule runs the job immediately and then on every tick until ctx is cancelled. The weekly job runs hourly so
// that every timezone passes through its Monday morning window. A failed run is logged and retried on the next tick.
func (j jobRunner) schedule(ctx context.Context, job string) error {
	interval := nightlyInterval
	if job == coach.JobWeekly {
		interval = weeklyInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := j.run(ctx, job); err != nil {
			if errors.Is(err, errUnknownJob) {
				return err
			}
			j.logger.LogAttrs(ctx, slog.LevelError, "scheduled run failed", errors.SlogError(err))
		}
		select {
		case <-ctx.Done():
			j.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "stopping scheduler")
			return nil
		case <-ticker.C:
		}
	}
}
