package bundler

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// Session is an opaque handle over one incremental build context. esbuild
// retains the module graph internally so that Rebuild only redoes changed
// work. The metafile/no-write flags are applied once, when the session is
// created; rebuilds reuse them and never re-apply anything.
//
// A Session is not safe for concurrent Rebuild calls; callers (the watch
// loop) must serialize.
type Session struct {
	bctx api.BuildContext
	root string
}

// NewSession establishes an incremental build session for the given options.
// The same forced flags as Bundle apply. Option-level problems are reported
// as an error before any build runs.
func (b *Bundler) NewSession(opts api.BuildOptions) (*Session, error) {
	opts.Metafile = true
	opts.Write = false
	if opts.AbsWorkingDir == "" {
		opts.AbsWorkingDir = b.root
	}
	bctx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return nil, fmt.Errorf("create build context: %w", ctxErr)
	}
	return &Session{bctx: bctx, root: opts.AbsWorkingDir}, nil
}

// Rebuild re-runs the session's build using esbuild's cached state and
// normalizes the result exactly like a fresh Bundle call. The context is
// checked before invoking; mid-build interruption goes through Cancel.
func (s *Session) Rebuild(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, failure := runBuild(s.bctx.Rebuild)
	if failure != nil {
		return &Result{Failure: failure, Warnings: failure.Warnings}, nil
	}
	return normalize(raw, s.root)
}

// Cancel interrupts an in-flight rebuild, if any.
func (s *Session) Cancel() { s.bctx.Cancel() }

// Dispose releases the session's retained state. The session must not be
// used afterwards.
func (s *Session) Dispose() { s.bctx.Dispose() }
