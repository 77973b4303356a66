package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sanity-io/litter"

	"github.com/randalmurphal/eventseq/pkg/eventseq"
	"github.com/randalmurphal/eventseq/pkg/eventseq/config"
	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/journal"
	"github.com/randalmurphal/eventseq/pkg/eventseq/observability"
)

// envPrefix names the environment variables layered over the config file.
const envPrefix = "EVENTSEQ"

type options struct {
	configPath  string
	interests   string
	journalPath string
	dump        bool
	verbose     bool
	metrics     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("eventseq", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML or JSON config file")
	fs.StringVar(&opts.interests, "interests", "", "comma-separated event types to emit (default: all)")
	fs.StringVar(&opts.journalPath, "journal", "", "SQLite file that records every emitted event (overrides the journal key)")
	fs.BoolVar(&opts.dump, "dump", false, "print per-aggregate state to stderr before exit")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	fs.BoolVar(&opts.metrics, "metrics", false, "record OpenTelemetry metrics and spans via the global providers")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func loadConfig(path string, environ []string) (config.Config, error) {
	cfg := config.New(nil)
	if path != "" {
		fileCfg, err := config.FromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = fileCfg
	}
	cfg = cfg.Merge(config.FromEnv(envPrefix, environ))
	return cfg.Expand(config.EnvVars(environ))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, environ []string) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	// Logs and the dump share stderr.
	stderr = &lockedWriter{w: stderr}

	cfg, err := loadConfig(opts.configPath, environ)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	rc := eventseq.ConfigFrom(cfg)
	rc.Logger = logger
	if rc.DeadLetters == nil {
		rc.DeadLetters = event.NewDeadLetters(0)
	}
	if opts.interests != "" {
		rc.Interest = event.NewInterest(splitList(opts.interests)...)
	}
	if opts.metrics {
		rc.Metrics = observability.NewMetricsRecorder()
		rc.Spans = observability.NewSpanManager()
	}

	router := eventseq.NewRouter(rc)
	defer router.Close()

	var out event.Handler = newLineWriter(stdout)
	if opts.verbose {
		out = event.ChainMiddleware(out, event.LoggingMiddleware(func(evt event.Event, _ string, d time.Duration, err error) {
			logger.Debug("event written",
				slog.String("aggregate_id", evt.AggregateID()),
				slog.Uint64("version", evt.Version()),
				slog.Duration("duration", d),
				slog.Any("error", err),
			)
		}))
	}
	if sub := router.SubscribeAll(out); sub == nil {
		return errors.New("subscribe output")
	}

	journalPath := opts.journalPath
	if journalPath == "" {
		journalPath = cfg.String("journal", "")
	}
	if journalPath != "" {
		j, err := journal.NewSQLiteJournal(journalPath)
		if err != nil {
			return err
		}
		defer j.Close()

		timeout := journal.WithAppendTimeout(cfg.Duration("journal_timeout", journal.DefaultAppendTimeout))
		if sub := router.SubscribeAll(journal.Recorder(j, timeout)); sub == nil {
			return errors.New("subscribe journal")
		}
	}

	elapsed := observability.TimedOperation()
	stats, feedErr := feed(ctx, router, stdin, logger)
	logger.Debug("input consumed",
		slog.Float64("duration_ms", elapsed()),
		slog.Int("lines", stats.lines),
		slog.Int("routed", stats.routed),
		slog.Int("skipped", stats.skipped),
	)

	var dumpErr error
	if opts.dump {
		dumpErr = dumpStates(ctx, router, stderr)
	}

	// Close flushes every accepted event to stdout and the journal.
	closeErr := router.Close()

	if n := rc.DeadLetters.Len(); n > 0 {
		logger.Warn("deliveries failed",
			slog.Int("dead_letters", n),
			slog.Int("dropped", rc.DeadLetters.Dropped()),
		)
	}

	return errors.Join(feedErr, dumpErr, closeErr)
}

func dumpStates(ctx context.Context, router *eventseq.Router, w io.Writer) error {
	states, err := router.States(ctx)
	if err != nil {
		return fmt.Errorf("query states: %w", err)
	}
	sq := litter.Options{HidePrivateFields: false}
	_, err = fmt.Fprintln(w, sq.Sdump(states))
	return err
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
