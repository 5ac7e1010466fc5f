package bundler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/webbundler/internal/logfields"
)

// Bundler invokes esbuild against one workspace root and normalizes its
// results. It holds no mutable state across calls; concurrent use is safe as
// long as the underlying build options are independent.
type Bundler struct {
	root   string
	logger *slog.Logger
}

// New creates a Bundler for the given workspace root. The root is resolved to
// an absolute path; it is the base against which output paths are rewritten.
func New(root string) (*Bundler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Bundler{root: abs, logger: slog.Default()}, nil
}

// WithLogger sets a custom logger.
func (b *Bundler) WithLogger(logger *slog.Logger) *Bundler {
	b.logger = logger
	return b
}

// Root returns the absolute workspace root.
func (b *Bundler) Root() string { return b.root }

// Bundle runs one fresh build. Metafile generation is forced on and direct
// filesystem writing is forced off, so all outputs come back as in-memory
// byte buffers plus a metadata map. A failed build is returned as the Failure
// variant of Result, never as an error; the error return is reserved for
// unexpected conditions (and anything unrecognized raised mid-build
// propagates as a panic, untouched).
func (b *Bundler) Bundle(ctx context.Context, opts api.BuildOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts.Metafile = true
	opts.Write = false
	if opts.AbsWorkingDir == "" {
		opts.AbsWorkingDir = b.root
	}
	root := opts.AbsWorkingDir

	b.logger.Debug("Invoking esbuild",
		slog.Int("entry_points", len(opts.EntryPoints)+len(opts.EntryPointsAdvanced)),
		slog.String("workspace", root))

	raw, failure := runBuild(func() api.BuildResult { return api.Build(opts) })
	if failure != nil {
		b.logger.Debug("Build failed", logfields.ErrorCount(len(failure.Errors)))
		return &Result{Failure: failure, Warnings: failure.Warnings}, nil
	}
	return normalize(raw, root)
}

// runBuild invokes fn and converts an aborted build (a raised structured
// Failure, typically from a plugin calling Abort) into a returned failure.
// A build result carrying errors is folded into the same failure path. Any
// raised value that is not a structured failure propagates unchanged: that is
// a programming or environment error, not a build error.
func runBuild(fn func() api.BuildResult) (raw api.BuildResult, failure *Failure) {
	defer func() {
		if v := recover(); v != nil {
			f, ok := AsFailure(v)
			if !ok {
				panic(v)
			}
			failure = f
		}
	}()
	raw = fn()
	if len(raw.Errors) > 0 {
		failure = &Failure{Errors: raw.Errors, Warnings: raw.Warnings}
	}
	return raw, failure
}

// normalize rewrites every output path to be relative to the workspace root
// and extracts the initial-files list from the metafile outputs table.
// Insertion order follows the bundler's output order; no sorting.
func normalize(raw api.BuildResult, root string) (*Result, error) {
	meta, err := ParseMetafile(raw.Metafile)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Warnings:    raw.Warnings,
		Metafile:    meta,
		RawMetafile: raw.Metafile,
		Contents:    make(map[string][]byte, len(raw.OutputFiles)),
	}
	for _, of := range raw.OutputFiles {
		rel, err := filepath.Rel(root, of.Path)
		if err != nil {
			return nil, fmt.Errorf("relativize output path %s: %w", of.Path, err)
		}
		rel = filepath.ToSlash(rel)

		res.OutputFiles = append(res.OutputFiles, OutputFile{
			Path:     rel,
			Contents: of.Contents,
			Hash:     of.Hash,
		})
		res.Contents[rel] = of.Contents

		if out, ok := meta.Outputs[rel]; ok && out.EntryPoint != "" {
			res.InitialFiles = append(res.InitialFiles, entryFile(rel))
		}
	}
	return res, nil
}
