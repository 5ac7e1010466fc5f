// Package devserver serves the most recent in-memory build output over HTTP.
// The adapter never writes output files to disk; the dev server makes them
// reachable anyway.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/webbundler/internal/history"
	"git.home.luguber.info/inful/webbundler/internal/logfields"
	"git.home.luguber.info/inful/webbundler/internal/metrics"
)

// snapshot is one immutable generation of build output.
type snapshot struct {
	files map[string][]byte
}

// Server serves build outputs, health, recent history and metrics.
type Server struct {
	addr    string
	outdir  string
	httpSrv *http.Server
	current atomic.Pointer[snapshot]
	store   *history.Store // optional
}

// New creates a dev server. outdir is the bundle output directory used as a
// lookup prefix; store may be nil (no /builds endpoint data) and reg may be
// nil (no /metrics endpoint).
func New(addr, outdir string, store *history.Store, reg *prom.Registry) *Server {
	s := &Server{addr: addr, outdir: outdir, store: store}
	s.current.Store(&snapshot{files: map[string][]byte{}})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/builds", s.handleBuilds)
	if reg != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(reg))
	}
	mux.HandleFunc("/", s.handleFile)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Update swaps in a new output snapshot. Keys are workspace-relative,
// slash-separated paths as produced by the bundler adapter.
func (s *Server) Update(files map[string][]byte) {
	copied := make(map[string][]byte, len(files))
	for k, v := range files {
		copied[k] = v
	}
	s.current.Store(&snapshot{files: copied})
}

// Start begins serving. It returns once the listener stops.
func (s *Server) Start() error {
	slog.Info("Starting dev server", slog.String("addr", s.addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dev server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping dev server")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "build history not configured", http.StatusNotFound)
		return
	}
	entries, err := s.store.Recent(r.Context(), 20)
	if err != nil {
		slog.Error("Failed to load build history", logfields.Error(err))
		http.Error(w, "failed to load build history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// handleFile resolves a request path against the current output snapshot.
// Lookup is tried as given and then under the outdir prefix, so both
// /dist/main.js and /main.js resolve to the same file.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	snap := s.current.Load()

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if rel == "" || rel == "." {
		rel = "index.html"
	}

	contents, ok := snap.files[rel]
	if !ok && s.outdir != "" {
		contents, ok = snap.files[path.Join(s.outdir, rel)]
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	ctype := mime.TypeByExtension(path.Ext(rel))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	_, _ = w.Write(contents)
}
