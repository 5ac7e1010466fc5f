// Package daemon runs webbundler as a long-lived process: an initial build,
// watch-triggered incremental rebuilds, scheduled full rebuilds, a dev HTTP
// server over the in-memory output, build history, metrics and notifications.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/webbundler/internal/bundler"
	"git.home.luguber.info/inful/webbundler/internal/config"
	"git.home.luguber.info/inful/webbundler/internal/devserver"
	berrors "git.home.luguber.info/inful/webbundler/internal/errors"
	"git.home.luguber.info/inful/webbundler/internal/history"
	"git.home.luguber.info/inful/webbundler/internal/incremental"
	"git.home.luguber.info/inful/webbundler/internal/logfields"
	"git.home.luguber.info/inful/webbundler/internal/metrics"
	"git.home.luguber.info/inful/webbundler/internal/notify"
	"git.home.luguber.info/inful/webbundler/internal/observability"
	"git.home.luguber.info/inful/webbundler/internal/watch"
)

// Daemon owns one incremental build session and everything around it.
// Rebuilds are serialized: esbuild's incremental state is not safe for
// concurrent rebuild calls.
type Daemon struct {
	cfg      *config.Config
	bundler  *bundler.Bundler
	session  *bundler.Session
	reporter *bundler.Reporter
	watcher  *watch.Watcher
	sched    *Scheduler
	server   *devserver.Server
	store    *history.Store
	pub      *notify.Publisher
	recorder metrics.Recorder

	buildMu sync.Mutex
	lastSig *incremental.Signature // guarded by buildMu

	wg sync.WaitGroup
}

// New assembles a daemon from configuration. Optional subsystems (history,
// notify, metrics) are only created when configured.
func New(cfg *config.Config) (*Daemon, error) {
	b, err := bundler.New(cfg.Workspace)
	if err != nil {
		return nil, berrors.WrapError(err, berrors.CategoryDaemon, "failed to create bundler")
	}

	opts, err := cfg.ToBuildOptions()
	if err != nil {
		return nil, berrors.WrapError(err, berrors.CategoryConfig, "invalid build options")
	}

	session, err := b.NewSession(opts)
	if err != nil {
		return nil, berrors.WrapError(err, berrors.CategoryBundle, "failed to establish build session")
	}

	watcher, err := watch.New(cfg.Workspace, cfg.Watch.Paths, cfg.Watch.Debounce.Std())
	if err != nil {
		session.Dispose()
		return nil, berrors.WrapError(err, berrors.CategoryWatch, "failed to create watcher")
	}

	sched, err := NewScheduler()
	if err != nil {
		session.Dispose()
		return nil, berrors.WrapError(err, berrors.CategoryDaemon, "failed to create scheduler")
	}

	d := &Daemon{
		cfg:      cfg,
		bundler:  b,
		session:  session,
		reporter: bundler.NewReporter(slog.Default()),
		watcher:  watcher,
		sched:    sched,
		recorder: metrics.NoopRecorder{},
	}

	if cfg.History.Path != "" {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			session.Dispose()
			return nil, berrors.WrapError(err, berrors.CategoryHistory, "failed to open build history")
		}
		d.store = store
	}

	var reg *prom.Registry
	if cfg.Server.Metrics {
		reg = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(reg)
	}
	d.server = devserver.New(cfg.Server.Addr, cfg.Build.Outdir, d.store, reg)

	if cfg.Notify.Enabled {
		pub, err := notify.NewPublisher(&cfg.Notify)
		if err != nil {
			// Notifications are best-effort; the daemon still runs.
			slog.Warn("Build notifications unavailable", logfields.Error(err))
		} else {
			d.pub = pub
		}
	}

	return d, nil
}

// Start runs the initial build and brings up the watch loop, the scheduler
// and the dev server. It returns after startup; the work continues on
// background goroutines until Stop.
func (d *Daemon) Start(ctx context.Context) error {
	d.runBuild(ctx, "initial")

	if err := d.watcher.Start(ctx); err != nil {
		return berrors.WrapError(err, berrors.CategoryWatch, "failed to start watcher")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-d.watcher.C():
				if !ok {
					return
				}
				d.runBuild(ctx, "watch")
			}
		}
	}()

	if interval := d.cfg.Watch.FullRebuildInterval.Std(); interval > 0 {
		if _, err := d.sched.SchedulePeriodicRebuild(interval, func() {
			d.runScheduledBuild(ctx)
		}); err != nil {
			return berrors.WrapError(err, berrors.CategoryDaemon, "failed to schedule periodic rebuild")
		}
		d.sched.Start()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Start(); err != nil {
			slog.Error("Dev server stopped", logfields.Error(err))
		}
	}()

	slog.Info("Daemon started",
		slog.String("addr", d.cfg.Server.Addr),
		slog.Duration("debounce", d.cfg.Watch.Debounce.Std()))
	return nil
}

// Stop shuts everything down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	d.watcher.Stop()
	if err := d.sched.Stop(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	if err := d.server.Stop(ctx); err != nil {
		slog.Warn("Dev server shutdown failed", logfields.Error(err))
	}
	d.session.Cancel()
	d.session.Dispose()
	if d.pub != nil {
		_ = d.pub.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
	d.wg.Wait()
	slog.Info("Daemon stopped")
	return nil
}

// runScheduledBuild skips the rebuild when the input signature is unchanged.
// The whole compare/build/update sequence holds buildMu: overlapping scheduler
// ticks must not race on lastSig.
func (d *Daemon) runScheduledBuild(ctx context.Context) {
	d.buildMu.Lock()
	defer d.buildMu.Unlock()

	sig, err := incremental.Compute(d.bundler.Root(), d.cfg.Watch.Paths)
	if err != nil {
		slog.Warn("Failed to compute input signature", logfields.Error(err))
	} else if sig.Equal(d.lastSig) {
		slog.Debug("Scheduled rebuild skipped, inputs unchanged")
		d.recorder.IncBuildOutcome("schedule", metrics.OutcomeSkipped)
		d.recordOutcome(ctx, uuid.NewString(), "schedule", "skipped", 0, nil)
		return
	}

	d.runBuildLocked(ctx, "schedule")

	// Recompute after the build: a source edit that landed mid-build must not
	// be stamped as current.
	sig, err = incremental.Compute(d.bundler.Root(), d.cfg.Watch.Paths)
	if err != nil {
		slog.Warn("Failed to compute input signature", logfields.Error(err))
		d.lastSig = nil
		return
	}
	d.lastSig = sig
}

// runBuild performs one serialized rebuild.
func (d *Daemon) runBuild(ctx context.Context, trigger string) {
	d.buildMu.Lock()
	defer d.buildMu.Unlock()
	d.runBuildLocked(ctx, trigger)
}

// runBuildLocked rebuilds and fans the outcome out to the reporter, dev
// server, metrics, history and notifications. Caller holds buildMu.
func (d *Daemon) runBuildLocked(ctx context.Context, trigger string) {
	buildID := uuid.NewString()
	ctx = observability.WithBuildID(ctx, buildID)
	ctx = observability.WithTrigger(ctx, trigger)

	start := time.Now()
	res, err := d.session.Rebuild(ctx)
	elapsed := time.Since(start)

	d.recorder.ObserveBuildDuration(trigger, elapsed)

	if err != nil {
		observability.ErrorContext(ctx, "Rebuild could not run", logfields.Error(err))
		d.recorder.IncBuildOutcome(trigger, metrics.OutcomeCanceled)
		return
	}

	d.reporter.ReportResult(res)
	d.recorder.IncDiagnostics("warning", len(res.Warnings))

	if res.Failed() {
		observability.ErrorContext(ctx, "Build failed",
			logfields.ErrorCount(len(res.Failure.Errors)),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		d.recorder.IncBuildOutcome(trigger, metrics.OutcomeFailed)
		d.recorder.IncDiagnostics("error", len(res.Failure.Errors))
		d.recordOutcome(ctx, buildID, trigger, "failed", elapsed, res)
		return
	}

	d.server.Update(res.Contents)
	d.recorder.IncBuildOutcome(trigger, metrics.OutcomeSuccess)
	d.recorder.SetOutputFiles(len(res.OutputFiles))
	d.recorder.SetOutputBytes(res.TotalBytes())

	observability.InfoContext(ctx, "Build succeeded",
		logfields.Outputs(len(res.OutputFiles)),
		logfields.OutputBytes(res.TotalBytes()),
		logfields.DurationMS(float64(elapsed.Milliseconds())))

	d.recordOutcome(ctx, buildID, trigger, "success", elapsed, res)
}

// recordOutcome persists and publishes one build outcome (both optional).
func (d *Daemon) recordOutcome(ctx context.Context, buildID, trigger, outcome string, elapsed time.Duration, res *bundler.Result) {
	var files, errs, warns int
	var bytes int64
	var initial []string
	if res != nil {
		files = len(res.OutputFiles)
		bytes = res.TotalBytes()
		warns = len(res.Warnings)
		if res.Failure != nil {
			errs = len(res.Failure.Errors)
		}
		for _, ef := range res.InitialFiles {
			initial = append(initial, ef.File)
		}
	}

	if d.store != nil {
		err := d.store.Record(ctx, history.Entry{
			BuildID:     buildID,
			Trigger:     trigger,
			Outcome:     outcome,
			DurationMS:  elapsed.Milliseconds(),
			OutputFiles: files,
			OutputBytes: bytes,
			Errors:      errs,
			Warnings:    warns,
		})
		if err != nil {
			slog.Warn("Failed to record build history", logfields.Error(err))
		}
	}

	if d.pub != nil {
		err := d.pub.PublishBuild(&notify.BuildEvent{
			BuildID:      buildID,
			Trigger:      trigger,
			Outcome:      outcome,
			DurationMS:   elapsed.Milliseconds(),
			OutputFiles:  files,
			OutputBytes:  bytes,
			InitialFiles: initial,
			Errors:       errs,
			Warnings:     warns,
		})
		if err != nil {
			slog.Warn("Failed to publish build event", logfields.Error(err))
		}
	}
}
