// Package bundler is a thin adapter around the esbuild Go API. It forwards
// build options (forcing metafile generation and in-memory output), converts
// failed builds into a structured Failure value instead of an error, rewrites
// output paths to be workspace-root-relative, classifies entry-point output
// files from the metafile, and forwards diagnostics to a logging sink.
//
// Bundling itself (module resolution, code splitting, minification, source
// maps, incremental invalidation) is entirely esbuild's responsibility; this
// package only normalizes the shape of what comes back.
package bundler
