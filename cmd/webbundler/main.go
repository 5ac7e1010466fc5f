package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/webbundler/internal/bundler"
	"git.home.luguber.info/inful/webbundler/internal/config"
	"git.home.luguber.info/inful/webbundler/internal/daemon"
	"git.home.luguber.info/inful/webbundler/internal/history"
	"git.home.luguber.info/inful/webbundler/internal/logfields"
	"git.home.luguber.info/inful/webbundler/internal/observability"
	"git.home.luguber.info/inful/webbundler/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"webbundler.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Outdir string `short:"o" help:"Override output directory"`
		Minify bool   `help:"Force minification on"`
	} `cmd:"" help:"Run one build and write the bundles to disk"`

	Watch struct {
		Outdir string `short:"o" help:"Override output directory"`
	} `cmd:"" help:"Rebuild on source changes and write bundles to disk"`

	Daemon struct{} `cmd:"" help:"Run the dev daemon: watch, rebuild, serve in-memory output over HTTP"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	History struct {
		Limit int `short:"n" help:"Number of builds to show" default:"20"`
	} `cmd:"" help:"Show recent build outcomes"`
}

func main() {
	kctx := kong.Parse(&CLI)

	switch kctx.Command() {
	case "build":
		cfg := mustLoadConfig()
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", logfields.Error(err))
			os.Exit(1)
		}
	case "watch":
		cfg := mustLoadConfig()
		if err := runWatch(cfg); err != nil {
			slog.Error("Watch failed", logfields.Error(err))
			os.Exit(1)
		}
	case "daemon":
		cfg := mustLoadConfig()
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	case "init":
		setupLogging(nil)
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		slog.Info("Configuration written", logfields.Path(CLI.Config))
	case "history":
		cfg := mustLoadConfig()
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", logfields.Error(err))
			os.Exit(1)
		}
	}
}

// mustLoadConfig loads the configuration, applies CLI overrides and installs
// the logger. Exits on failure: nothing works without a config.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		setupLogging(nil)
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}

	if CLI.Build.Outdir != "" {
		cfg.Build.Outdir = CLI.Build.Outdir
	}
	if CLI.Watch.Outdir != "" {
		cfg.Build.Outdir = CLI.Watch.Outdir
	}
	if CLI.Build.Minify {
		cfg.Build.Minify = true
	}

	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	format := "text"
	if cfg != nil {
		level = observability.ParseLevel(cfg.Log.Level)
		format = cfg.Log.Format
	}
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	observability.Setup(level, format)
}

// runBuild performs one fresh build. The adapter returns everything in
// memory; the CLI persists the bundles under the workspace itself.
func runBuild(cfg *config.Config) error {
	ctx := observability.WithBuildID(context.Background(), uuid.NewString())
	ctx = observability.WithTrigger(ctx, "cli")

	b, err := bundler.New(cfg.Workspace)
	if err != nil {
		return err
	}
	opts, err := cfg.ToBuildOptions()
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := b.Bundle(ctx, opts)
	if err != nil {
		return err
	}

	reporter := bundler.NewReporter(slog.Default())
	reporter.ReportResult(res)

	if res.Failed() {
		return fmt.Errorf("build failed with %d errors", len(res.Failure.Errors))
	}

	if err := writeOutputs(b.Root(), res); err != nil {
		return err
	}

	for _, ef := range res.InitialFiles {
		slog.Info("Entry point bundle",
			slog.String("name", ef.Name),
			slog.String("file", ef.File))
	}
	observability.InfoContext(ctx, "Build succeeded",
		logfields.Outputs(len(res.OutputFiles)),
		logfields.OutputBytes(res.TotalBytes()),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

// runWatch keeps an incremental session alive and writes outputs on every
// successful rebuild.
func runWatch(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := bundler.New(cfg.Workspace)
	if err != nil {
		return err
	}
	opts, err := cfg.ToBuildOptions()
	if err != nil {
		return err
	}
	session, err := b.NewSession(opts)
	if err != nil {
		return err
	}
	defer session.Dispose()

	watcher, err := watch.New(cfg.Workspace, cfg.Watch.Paths, cfg.Watch.Debounce.Std())
	if err != nil {
		return err
	}
	defer watcher.Stop()

	reporter := bundler.NewReporter(slog.Default())

	rebuild := func(trigger string) {
		bctx := observability.WithBuildID(ctx, uuid.NewString())
		bctx = observability.WithTrigger(bctx, trigger)

		res, err := session.Rebuild(bctx)
		if err != nil {
			observability.ErrorContext(bctx, "Rebuild could not run", logfields.Error(err))
			return
		}
		reporter.ReportResult(res)
		if res.Failed() {
			return
		}
		if err := writeOutputs(b.Root(), res); err != nil {
			observability.ErrorContext(bctx, "Failed to write outputs", logfields.Error(err))
			return
		}
		observability.InfoContext(bctx, "Rebuild succeeded",
			logfields.Outputs(len(res.OutputFiles)))
	}

	rebuild("cli")

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	slog.Info("Watching for changes, press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received")
			return nil
		case _, ok := <-watcher.C():
			if !ok {
				return nil
			}
			rebuild("watch")
		}
	}
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	return nil
}

func runHistory(cfg *config.Config, limit int) error {
	if cfg.History.Path == "" {
		return fmt.Errorf("build history is not configured (set history.path)")
	}
	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-8s %-8s %6dms  %3d files  %8d bytes  %d errors  %d warnings\n",
			e.CreatedAt.Format(time.RFC3339), e.Trigger, e.Outcome,
			e.DurationMS, e.OutputFiles, e.OutputBytes, e.Errors, e.Warnings)
	}
	return nil
}

// writeOutputs persists the in-memory output map to disk. The bundler itself
// never writes (write mode is forced off), so this is the only place bytes
// touch the filesystem.
func writeOutputs(root string, res *bundler.Result) error {
	for _, of := range res.OutputFiles {
		target := filepath.Join(root, filepath.FromSlash(of.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(target, of.Contents, 0644); err != nil {
			return fmt.Errorf("write %s: %w", of.Path, err)
		}
	}
	return nil
}
