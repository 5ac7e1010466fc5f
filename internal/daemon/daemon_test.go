package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/webbundler/internal/bundler"
	"git.home.luguber.info/inful/webbundler/internal/config"
	"git.home.luguber.info/inful/webbundler/internal/devserver"
	"git.home.luguber.info/inful/webbundler/internal/metrics"
	"git.home.luguber.info/inful/webbundler/internal/watch"
)

type recordedOutcome struct {
	trigger string
	outcome metrics.OutcomeLabel
}

// capturingRecorder collects build outcomes for assertions. Safe for
// concurrent use.
type capturingRecorder struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (r *capturingRecorder) ObserveBuildDuration(string, time.Duration) {}
func (r *capturingRecorder) SetOutputFiles(int)                         {}
func (r *capturingRecorder) SetOutputBytes(int64)                       {}
func (r *capturingRecorder) IncDiagnostics(string, int)                 {}

func (r *capturingRecorder) IncBuildOutcome(trigger string, outcome metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, recordedOutcome{trigger: trigger, outcome: outcome})
}

func (r *capturingRecorder) snapshot() []recordedOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedOutcome(nil), r.outcomes...)
}

func (r *capturingRecorder) has(trigger string, outcome metrics.OutcomeLabel) bool {
	for _, o := range r.snapshot() {
		if o.trigger == trigger && o.outcome == outcome {
			return true
		}
	}
	return false
}

// newTestDaemon assembles a daemon over a throwaway workspace with a live
// incremental session, without history, notify or a running server.
func newTestDaemon(t *testing.T) (*Daemon, *capturingRecorder, string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.js"),
		[]byte("console.log('v1');\n"), 0644))

	cfg := &config.Config{Workspace: root}
	cfg.Build.EntryPoints = []string{"src/main.js"}
	cfg.Build.Outdir = "dist"
	cfg.Watch.Paths = []string{"src"}
	cfg.Watch.Debounce = config.Duration(50 * time.Millisecond)
	cfg.Server.Addr = "127.0.0.1:0"

	b, err := bundler.New(root)
	require.NoError(t, err)

	session, err := b.NewSession(api.BuildOptions{
		EntryPoints: []string{"src/main.js"},
		Outdir:      "dist",
		Bundle:      true,
		LogLevel:    api.LogLevelSilent,
	})
	require.NoError(t, err)
	t.Cleanup(session.Dispose)

	rec := &capturingRecorder{}
	d := &Daemon{
		cfg:      cfg,
		bundler:  b,
		session:  session,
		reporter: bundler.NewReporter(slog.Default()),
		server:   devserver.New(cfg.Server.Addr, cfg.Build.Outdir, nil, nil),
		recorder: rec,
	}
	return d, rec, root
}

func TestRunScheduledBuild_SkipsWhenInputsUnchanged(t *testing.T) {
	d, rec, _ := newTestDaemon(t)
	ctx := context.Background()

	d.runScheduledBuild(ctx)
	d.runScheduledBuild(ctx)

	got := rec.snapshot()
	require.Len(t, got, 2)
	require.Equal(t, recordedOutcome{"schedule", metrics.OutcomeSuccess}, got[0])
	require.Equal(t, recordedOutcome{"schedule", metrics.OutcomeSkipped}, got[1])
}

func TestRunScheduledBuild_RebuildsAfterSourceChange(t *testing.T) {
	d, rec, root := newTestDaemon(t)
	ctx := context.Background()

	d.runScheduledBuild(ctx)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.js"),
		[]byte("console.log('v2, longer body');\n"), 0644))
	d.runScheduledBuild(ctx)

	got := rec.snapshot()
	require.Len(t, got, 2)
	require.Equal(t, metrics.OutcomeSuccess, got[0].outcome)
	require.Equal(t, metrics.OutcomeSuccess, got[1].outcome)
}

// Overlapping scheduler ticks share lastSig; the whole compare/build/update
// must be serialized. Run with -race.
func TestRunScheduledBuild_ConcurrentTicksAreSerialized(t *testing.T) {
	d, rec, _ := newTestDaemon(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runScheduledBuild(ctx)
		}()
	}
	wg.Wait()

	got := rec.snapshot()
	require.Len(t, got, 2)
	for _, o := range got {
		require.Equal(t, "schedule", o.trigger)
		require.Contains(t, []metrics.OutcomeLabel{metrics.OutcomeSuccess, metrics.OutcomeSkipped}, o.outcome)
	}
	// The second tick saw the first one's signature and skipped.
	require.Equal(t, metrics.OutcomeSkipped, got[1].outcome)
}

func TestDaemon_StartRunsInitialBuildAndWatches(t *testing.T) {
	d, rec, root := newTestDaemon(t)

	watcher, err := watch.New(root, []string{"src"}, 50*time.Millisecond)
	require.NoError(t, err)
	d.watcher = watcher

	sched, err := NewScheduler()
	require.NoError(t, err)
	d.sched = sched

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))

	// The first build carries its own trigger label, distinct from one-shot
	// CLI builds.
	got := rec.snapshot()
	require.NotEmpty(t, got)
	require.Equal(t, recordedOutcome{"initial", metrics.OutcomeSuccess}, got[0])

	// A source change fans out through the watcher into a rebuild.
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.js"),
		[]byte("console.log('changed');\n"), 0644))
	require.Eventually(t, func() bool {
		return rec.has("watch", metrics.OutcomeSuccess)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, d.Stop(stopCtx))
}
