package bundler

import (
	"encoding/json"
	"fmt"
)

// Metafile is the parsed form of esbuild's metafile side channel. Output
// table keys are workspace-relative, slash-separated paths.
type Metafile struct {
	Inputs  map[string]MetaInput  `json:"inputs"`
	Outputs map[string]MetaOutput `json:"outputs"`
}

// MetaInput describes one source file that participated in the build.
type MetaInput struct {
	Bytes   int          `json:"bytes"`
	Imports []MetaImport `json:"imports"`
	Format  string       `json:"format,omitempty"`
}

// MetaOutput describes one emitted file. A non-empty EntryPoint marks the
// file as a named entry-point bundle rather than a shared chunk or asset.
type MetaOutput struct {
	Bytes      int                    `json:"bytes"`
	Inputs     map[string]MetaContrib `json:"inputs"`
	Imports    []MetaImport           `json:"imports"`
	Exports    []string               `json:"exports"`
	EntryPoint string                 `json:"entryPoint,omitempty"`
	CSSBundle  string                 `json:"cssBundle,omitempty"`
}

// MetaContrib is the per-input byte contribution to an output file.
type MetaContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// MetaImport is a single import edge recorded in the metafile.
type MetaImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// ParseMetafile decodes the JSON metafile string returned by esbuild. An
// empty string yields an empty Metafile.
func ParseMetafile(data string) (*Metafile, error) {
	if data == "" {
		return &Metafile{}, nil
	}
	var m Metafile
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}
	return &m, nil
}
