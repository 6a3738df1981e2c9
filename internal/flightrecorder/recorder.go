// Package flightrecorder keeps a rolling execution trace and writes it to disk when a batch run is slow.
package flightrecorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

const (
	defaultMinAge   = 5 * time.Minute
	defaultMaxBytes = 64 * 1024 * 1024

	// cooldown is the minimum time between two captured traces.
	cooldown = 30 * time.Minute
)

// Recorder captures execution traces of slow batch runs. A nil Recorder does nothing.
type Recorder struct {
	logger         *slog.Logger
	flightRecorder *trace.FlightRecorder
	dir            string
	slowThreshold  time.Duration
	lastCapture    atomic.Int64 // Unix seconds.
}

// Config configures a Recorder. Zero MinAge and MaxBytes use defaults.
type Config struct {
	Dir           string
	SlowThreshold time.Duration
	MinAge        time.Duration
	MaxBytes      uint64
}

// New creates the trace directory when missing and returns a stopped Recorder.
func New(cfg Config, logger *slog.Logger) (*Recorder, error) {
	if cfg.Dir == "" {
		return nil, errors.New("traces directory is required")
	}
	if cfg.SlowThreshold <= 0 {
		return nil, errors.New("slow threshold must be positive", slog.Duration("slow_threshold", cfg.SlowThreshold))
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil { //nolint:mnd // owner and group
		return nil, errors.Wrap(err, "create traces directory", slog.String("dir", cfg.Dir))
	}

	minAge := cfg.MinAge
	if minAge == 0 {
		minAge = defaultMinAge
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}

	return &Recorder{
		logger:         logger,
		flightRecorder: trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: minAge, MaxBytes: maxBytes}),
		dir:            cfg.Dir,
		slowThreshold:  cfg.SlowThreshold,
		lastCapture:    atomic.Int64{},
	}, nil
}

// Start begins recording.
func (r *Recorder) Start(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.flightRecorder.Start(); err != nil {
		return errors.Wrap(err, "start flight recorder")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("dir", r.dir), slog.Duration("slow_threshold", r.slowThreshold))
	return nil
}

// Stop ends recording.
func (r *Recorder) Stop(ctx context.Context) {
	if r == nil {
		return
	}
	r.flightRecorder.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// ObserveRun writes the recorded trace when elapsed exceeds the slow threshold. Captures within the cooldown of
// the previous one are skipped.
func (r *Recorder) ObserveRun(ctx context.Context, job string, elapsed time.Duration) {
	if r == nil || elapsed < r.slowThreshold {
		return
	}
	now := time.Now()
	last := r.lastCapture.Load()
	if last > 0 && now.Sub(time.Unix(last, 0)) < cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture during cooldown",
			slog.Time("last_capture", time.Unix(last, 0)))
		return
	}
	if !r.lastCapture.CompareAndSwap(last, now.Unix()) {
		return
	}

	path := filepath.Join(r.dir, fmt.Sprintf("slow-%s-%s.trace", job, now.UTC().Format("20060102-150405")))
	if err := r.writeTrace(path); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to capture trace", errors.SlogError(err))
		return
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured slow batch trace",
		slog.String("file", path), slog.Duration("elapsed", elapsed))
}

func (r *Recorder) writeTrace(path string) (err error) {
	file, err := os.Create(path) //nolint:gosec // path is built from configuration
	if err != nil {
		return errors.Wrap(err, "create trace file", slog.String("file", path))
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	if _, err = r.flightRecorder.WriteTo(file); err != nil {
		return errors.Wrap(err, "write trace", slog.String("file", path))
	}
	return nil
}
