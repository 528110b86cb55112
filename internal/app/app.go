// Package app assembles the pipeline: config, logger, record store,
// reporter, retry executor and fetch client.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"errguard/internal/config"
	"errguard/internal/metrics"
	"errguard/internal/platform/logger"
	"errguard/internal/platform/store"
	"errguard/internal/scheduler"
	"errguard/pkg/backoff"
	"errguard/pkg/catalog"
	"errguard/pkg/fetch"
	"errguard/pkg/normalize"
	"errguard/pkg/report"
)

// App owns the assembled components and their lifecycle.
type App struct {
	Cfg        config.Config
	Log        *slog.Logger
	Store      *store.Store
	Normalizer *normalize.Normalizer
	Reporter   *report.Reporter
	Executor   *backoff.Executor
	Fetcher    *fetch.Client
	Registry   *prometheus.Registry

	sched     *scheduler.Scheduler
	logCloser func() error
}

// New loads configuration and wires every component together.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, logCloser := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          cfg.Addon.Name,
	})

	cat, err := catalog.Default()
	if err != nil {
		_ = logCloser()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	norm := normalize.New(cat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	mets := metrics.New(registry)

	var (
		st   *store.Store
		sink report.Sink = report.NewSlogSink(log)
	)
	if cfg.Store.Path != "" {
		st, err = store.Open(ctx, cfg.Store.Path, log)
		if err != nil {
			_ = logCloser()
			return nil, fmt.Errorf("open record store: %w", err)
		}
		sink = report.MultiSink{sink, st}
	}

	reporter := report.New(report.Config{
		AddonName:    cfg.Addon.Name,
		Version:      cfg.Addon.Version,
		ScriptID:     func() (string, error) { return cfg.Addon.ScriptID, nil },
		ActiveLocale: localeLookup(cfg.Locale),
		Sink:         mets.Sink(sink),
		Logger:       log,
	}, norm)

	exec := backoff.New(backoff.Config{
		Reporter:   reporter,
		Normalizer: norm,
		Logger:     log,
		OnRetry:    mets.Observer(),
	})

	fetcher := fetch.New(exec,
		fetch.WithLogger(log),
		fetch.WithBackoffOptions(backoff.Options{
			MaxRetries: cfg.Retry.MaxRetries,
			Verbose:    cfg.Retry.Verbose,
		}),
	)

	a := &App{
		Cfg:        cfg,
		Log:        log,
		Store:      st,
		Normalizer: norm,
		Reporter:   reporter,
		Executor:   exec,
		Fetcher:    fetcher,
		Registry:   registry,
		logCloser:  logCloser,
	}

	if st != nil && cfg.Store.PurgeSchedule != "" {
		a.sched = scheduler.New(log)
		retention := time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
		_, err := a.sched.Add(cfg.Store.PurgeSchedule, "record-purge", time.Minute,
			func(ctx context.Context) error {
				_, perr := st.Purge(ctx, time.Now().Add(-retention))
				return perr
			})
		if err != nil {
			_ = st.Close()
			_ = logCloser()
			return nil, fmt.Errorf("schedule record purge: %w", err)
		}
	}

	return a, nil
}

// StartJobs launches background maintenance, if configured.
func (a *App) StartJobs() {
	if a.sched != nil {
		a.sched.Start()
	}
}

// Close stops jobs and releases resources.
func (a *App) Close() error {
	var errs []error
	if a.sched != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.sched.Stop(ctx)
		cancel()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser())
	}
	return errors.Join(errs...)
}

// localeLookup resolves the active-user locale: the forced value when
// configured, else the LANG environment variable.
func localeLookup(forced string) func() (string, error) {
	return func() (string, error) {
		if forced != "" {
			return forced, nil
		}
		lang := os.Getenv("LANG")
		if lang == "" {
			return "", errors.New("no active locale")
		}
		// "en_US.UTF-8" -> "en-US"
		if i := strings.IndexByte(lang, '.'); i > 0 {
			lang = lang[:i]
		}
		return strings.ReplaceAll(lang, "_", "-"), nil
	}
}
