package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/myrjola/petrcoach/internal/ai"
	"github.com/myrjola/petrcoach/internal/coach"
	"github.com/myrjola/petrcoach/internal/envstruct"
	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/flightrecorder"
	"github.com/myrjola/petrcoach/internal/logging"
	"github.com/myrjola/petrcoach/internal/metrics"
	"github.com/myrjola/petrcoach/internal/sqlite"
)

type config struct {
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"PETRCOACH_SQLITE_URL" envDefault:"./petrcoach.sqlite3"`
	// OpenAIAPIKey enables LLM written narratives. Without it every weekly report uses the fallback narrative.
	OpenAIAPIKey      string        `env:"PETRCOACH_OPENAI_API_KEY" envDefault:""`
	OpenAIModel       string        `env:"PETRCOACH_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	NarrativeTimeout  time.Duration `env:"PETRCOACH_NARRATIVE_TIMEOUT" envDefault:"15s"`
	NarrativeDailyCap int           `env:"PETRCOACH_NARRATIVE_DAILY_LIMIT" envDefault:"3"`
	BatchConcurrency  int           `env:"PETRCOACH_BATCH_CONCURRENCY" envDefault:"4"`
	// MetricsAddr is the optional address of the Prometheus /metrics listener.
	MetricsAddr string `env:"PETRCOACH_METRICS_ADDR" envDefault:""`
	// TracesDir enables the flight recorder. Runs slower than SlowBatchThreshold leave an execution trace there.
	TracesDir          string        `env:"PETRCOACH_TRACES_DIR" envDefault:""`
	SlowBatchThreshold time.Duration `env:"PETRCOACH_SLOW_BATCH_THRESHOLD" envDefault:"10m"`
}

type options struct {
	job   string
	limit int
	loop  bool
}

const narrativeMaxRetries = 2

var errUnknownJob = errors.NewSentinel("unknown job")

func parseOptions(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("coachjobs", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.job, "job", coach.JobNightly, "job to run [nightly | weekly]")
	fs.IntVar(&opts.limit, "limit", 0, "maximum number of users per run, 0 means all")
	fs.BoolVar(&opts.loop, "loop", false, "keep running on the job schedule instead of exiting after one run")
	if err := fs.Parse(args); err != nil {
		return options{}, errors.Wrap(err, "parse flags")
	}
	if opts.job != coach.JobNightly && opts.job != coach.JobWeekly {
		return options{}, errors.Wrap(errUnknownJob, "parse flags", slog.String("job", opts.job))
	}
	return opts, nil
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool), args []string) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseOptions(args, os.Stderr)
	if err != nil {
		return err
	}

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsManager := metrics.NewManager("petrcoach", "", reg)
	if cfg.MetricsAddr != "" {
		if err = launchMetricsServer(ctx, cfg.MetricsAddr, reg, logger); err != nil {
			return errors.Wrap(err, "launch metrics server")
		}
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	serviceOpts := []coach.Option{
		coach.WithMetrics(metricsManager),
		coach.WithNarrativeDailyLimit(cfg.NarrativeDailyCap),
	}
	if cfg.OpenAIAPIKey != "" {
		serviceOpts = append(serviceOpts, coach.WithNarrator(ai.NewNarrativeClient(ai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			Timeout:    cfg.NarrativeTimeout,
			BaseURL:    "",
			MaxRetries: narrativeMaxRetries,
		}, logger)))
	} else {
		logger.LogAttrs(ctx, slog.LevelInfo, "no OpenAI API key, weekly reports use fallback narratives")
	}
	svc := coach.NewService(db, logger, serviceOpts...)
	runner := coach.NewRunner(svc, logger, cfg.BatchConcurrency, opts.limit)

	var recorder *flightrecorder.Recorder
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(flightrecorder.Config{
			Dir:           cfg.TracesDir,
			SlowThreshold: cfg.SlowBatchThreshold,
			MinAge:        0,
			MaxBytes:      0,
		}, logger); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(context.WithoutCancel(ctx))
	}

	j := jobRunner{runner: runner, recorder: recorder, logger: logger}
	if opts.loop {
		return j.schedule(ctx, opts.job)
	}
	if _, err = j.run(ctx, opts.job); err != nil {
		return err
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv, os.Args[1:]); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure running coach jobs", errors.SlogError(err))
		os.Exit(1)
	}
}
