package bundler

import (
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// OutputFile is one emitted artifact with its path already rewritten to be
// workspace-root-relative (slash-separated). Absolute paths are never exposed.
type OutputFile struct {
	Path     string
	Contents []byte
	Hash     string
}

// EntryFile summarizes an output file that corresponds to a named entry
// point. Name is the leading dot-delimited segment of the base filename (the
// stem before any content hash suffix); Extension includes the leading dot.
type EntryFile struct {
	File      string `json:"file"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

// Result is the normalized outcome of one build invocation. Exactly one of
// the two variants is populated: Failure carries diagnostics for a failed
// build, everything else describes a successful one.
type Result struct {
	// Failure is non-nil when the bundler reported errors. No output files
	// accompany a failed build.
	Failure *Failure

	// Warnings holds the warning diagnostics of the build regardless of
	// outcome.
	Warnings []api.Message

	// OutputFiles lists emitted files with workspace-relative paths, in the
	// order the bundler produced them.
	OutputFiles []OutputFile

	// Contents maps workspace-relative output path to raw bytes.
	Contents map[string][]byte

	// InitialFiles lists the entry-point bundles, in output-file order.
	InitialFiles []EntryFile

	// Metafile is the parsed build metadata; RawMetafile its JSON source.
	Metafile    *Metafile
	RawMetafile string
}

// Failed reports whether the build produced the failure variant.
func (r *Result) Failed() bool { return r.Failure != nil }

// TotalBytes sums the sizes of all output files.
func (r *Result) TotalBytes() int64 {
	var n int64
	for _, of := range r.OutputFiles {
		n += int64(len(of.Contents))
	}
	return n
}

// entryFile derives the {file, name, extension} summary for a relative
// output path, e.g. "dist/polyfills.7S5G3MDY.js" -> {file, "polyfills", ".js"}.
// Assumes esbuild's naming scheme where the stem never contains a literal dot
// before the hash or extension suffix.
func entryFile(rel string) EntryFile {
	base := path.Base(rel)
	name := base
	if i := strings.IndexByte(base, '.'); i >= 0 {
		name = base[:i]
	}
	return EntryFile{File: rel, Name: name, Extension: path.Ext(base)}
}
