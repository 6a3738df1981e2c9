package coach

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/logging"
	"github.com/myrjola/petrcoach/internal/timewindow"
)

const (
	JobNightly = "nightly"
	JobWeekly  = "weekly"

	activeUserDays     = 30
	defaultConcurrency = 4

	weeklyWindowStartHour = 3
	weeklyWindowEndHour   = 6
)

// BatchResult counts the users a batch run touched.
type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
}

// Runner runs the scheduled per-user computations in bounded parallel batches.
type Runner struct {
	svc         *Service
	logger      *slog.Logger
	concurrency int
	limit       int
}

// NewRunner creates a runner that processes at most concurrency users at a time. A positive limit caps how many
// users a single run picks up.
func NewRunner(svc *Service, logger *slog.Logger, concurrency, limit int) *Runner {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Runner{
		svc:         svc,
		logger:      logger,
		concurrency: concurrency,
		limit:       limit,
	}
}

// RunNightly refreshes the behaviour metrics of every user who trained in the last 30 days.
func (r *Runner) RunNightly(ctx context.Context) (BatchResult, error) {
	since := r.svc.clock.Now().AddDate(0, 0, -activeUserDays)
	users, err := r.svc.repo.users.ListActiveSince(ctx, since)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "list active users")
	}
	return r.run(ctx, JobNightly, users, func(ctx context.Context, user User) error {
		_, err := r.svc.computeMetrics(ctx, user, r.svc.clock.Today(user.Timezone))
		return err
	})
}

// RunWeekly handles the users whose local time is Monday between 03:00 and 06:00. Each of them gets a new
// prediction, the plan adjustment of the current week and the report of the week that just ended.
func (r *Runner) RunWeekly(ctx context.Context) (BatchResult, error) {
	all, err := r.svc.repo.users.List(ctx)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "list users")
	}
	now := r.svc.clock.Now()
	var users []User
	for _, u := range all {
		if timewindow.InWindow(now, u.Timezone, time.Monday, weeklyWindowStartHour, weeklyWindowEndHour) {
			users = append(users, u)
		}
	}
	return r.run(ctx, JobWeekly, users, r.weekly)
}

func (r *Runner) weekly(ctx context.Context, user User) error {
	var errs []error
	if _, err := r.svc.ComputePrediction(ctx, user.ID); err != nil {
		errs = append(errs, errors.Wrap(err, "compute prediction"))
	}
	weekStart := timewindow.WeekStart(r.svc.clock.Today(user.Timezone))
	if _, err := r.svc.ComputeWeeklyAdjustment(ctx, user.ID, weekStart); err != nil {
		errs = append(errs, errors.Wrap(err, "compute weekly adjustment"))
	}
	if _, err := r.svc.GenerateWeeklyReport(ctx, user.ID); err != nil {
		errs = append(errs, errors.Wrap(err, "generate weekly report"))
	}
	return errors.Join(errs...)
}

// run processes users concurrently. A failing or panicking user is logged and counted but never stops the batch.
func (r *Runner) run(
	ctx context.Context,
	job string,
	users []User,
	process func(ctx context.Context, user User) error,
) (BatchResult, error) {
	start := time.Now()
	ctx = logging.WithAttrs(ctx, slog.String("job", job), slog.String("run_id", uuid.NewString()))
	if r.limit > 0 && len(users) > r.limit {
		users = users[:r.limit]
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "starting batch", slog.Int("users", len(users)))

	var succeeded, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, user := range users {
		g.Go(func() error {
			userCtx := logging.WithAttrs(ctx, slog.Int("user_id", user.ID),
				slog.String("local_date", timewindow.FormatDate(r.svc.clock.Today(user.Timezone))))
			if err := r.processUser(userCtx, user, process); err != nil {
				failed.Add(1)
				r.svc.metrics.ObserveUser(job, "failure")
				r.logger.LogAttrs(userCtx, slog.LevelError, "user failed", errors.SlogError(err))
				return nil
			}
			succeeded.Add(1)
			r.svc.metrics.ObserveUser(job, "success")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, errors.Wrap(err, "wait for batch")
	}

	result := BatchResult{
		Processed: len(users),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
	elapsed := time.Since(start)
	r.svc.metrics.ObserveBatchDuration(job, elapsed.Seconds())
	r.logger.LogAttrs(ctx, slog.LevelInfo, "finished batch",
		slog.Int("processed", result.Processed),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Duration("elapsed", elapsed))
	return result, nil
}

func (r *Runner) processUser(
	ctx context.Context,
	user User,
	process func(ctx context.Context, user User) error,
) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.DecoratePanic(p)
		}
	}()
	return process(ctx, user)
}
