package bundler

import (
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RelativizesPathsAndClassifiesInitialFiles(t *testing.T) {
	root := filepath.FromSlash("/work/app")

	metafile := `{
		"inputs": {},
		"outputs": {
			"dist/main.ABCD1234.js": {"bytes": 10, "entryPoint": "src/main.ts"},
			"dist/polyfills.7S5G3MDY.js": {"bytes": 20, "entryPoint": "src/polyfills.ts"},
			"dist/chunk-XYZ.js": {"bytes": 5}
		}
	}`

	raw := api.BuildResult{
		Metafile: metafile,
		OutputFiles: []api.OutputFile{
			{Path: filepath.Join(root, "dist", "main.ABCD1234.js"), Contents: []byte("main")},
			{Path: filepath.Join(root, "dist", "polyfills.7S5G3MDY.js"), Contents: []byte("polyfills!")},
			{Path: filepath.Join(root, "dist", "chunk-XYZ.js"), Contents: []byte("chunk")},
		},
	}

	res, err := normalize(raw, root)
	require.NoError(t, err)
	require.False(t, res.Failed())

	// Absolute paths never escape; order is the bundler's output order.
	require.Equal(t, []string{
		"dist/main.ABCD1234.js",
		"dist/polyfills.7S5G3MDY.js",
		"dist/chunk-XYZ.js",
	}, outputPaths(res))

	require.Equal(t, []byte("polyfills!"), res.Contents["dist/polyfills.7S5G3MDY.js"])

	// Only outputs declaring an entry point are initial files.
	require.Equal(t, []EntryFile{
		{File: "dist/main.ABCD1234.js", Name: "main", Extension: ".js"},
		{File: "dist/polyfills.7S5G3MDY.js", Name: "polyfills", Extension: ".js"},
	}, res.InitialFiles)
}

func TestNormalize_NoEntryPointsMeansNoInitialFiles(t *testing.T) {
	root := filepath.FromSlash("/work/app")
	raw := api.BuildResult{
		Metafile: `{"inputs": {}, "outputs": {"dist/out.js": {"bytes": 1}}}`,
		OutputFiles: []api.OutputFile{
			{Path: filepath.Join(root, "dist", "out.js"), Contents: []byte("x")},
		},
	}

	res, err := normalize(raw, root)
	require.NoError(t, err)
	require.Empty(t, res.InitialFiles)
	require.Len(t, res.OutputFiles, 1)
}

func TestNormalize_RejectsBrokenMetafile(t *testing.T) {
	_, err := normalize(api.BuildResult{Metafile: "{nope"}, "/work")
	require.Error(t, err)
}

func TestEntryFile_NameAndExtension(t *testing.T) {
	cases := []struct {
		rel  string
		name string
		ext  string
	}{
		{"dist/polyfills.7S5G3MDY.js", "polyfills", ".js"},
		{"dist/main.js", "main", ".js"},
		{"styles.A1B2C3.css", "styles", ".css"},
		{"dist/nested/worker.W0RK3R.mjs", "worker", ".mjs"},
	}
	for _, c := range cases {
		ef := entryFile(c.rel)
		require.Equal(t, c.rel, ef.File)
		require.Equal(t, c.name, ef.Name)
		require.Equal(t, c.ext, ef.Extension)
	}
}

func TestResult_TotalBytes(t *testing.T) {
	res := &Result{OutputFiles: []OutputFile{
		{Path: "a.js", Contents: []byte("12345")},
		{Path: "b.js", Contents: []byte("678")},
	}}
	require.Equal(t, int64(8), res.TotalBytes())
}

func outputPaths(res *Result) []string {
	paths := make([]string, 0, len(res.OutputFiles))
	for _, of := range res.OutputFiles {
		paths = append(paths, of.Path)
	}
	return paths
}
