package bundler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
)

// writeWorkspace lays out a tiny two-entry-point project and returns its root.
func writeWorkspace(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0755))

	files := map[string]string{
		"main.js":      "import {greet} from './util.js';\nconsole.log(greet('world'));\n",
		"polyfills.js": "globalThis.__polyfilled = true;\n",
		"util.js":      "export function greet(name) { return 'hello ' + name; }\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(content), 0644))
	}
	return root
}

func buildOptions() api.BuildOptions {
	return api.BuildOptions{
		EntryPoints: []string{"src/main.js", "src/polyfills.js"},
		Outdir:      "dist",
		Bundle:      true,
		Format:      api.FormatESModule,
		EntryNames:  "[name].[hash]",
		LogLevel:    api.LogLevelSilent,
	}
}

func TestBundle_EndToEnd(t *testing.T) {
	root := writeWorkspace(t)
	b, err := New(root)
	require.NoError(t, err)

	res, err := b.Bundle(t.Context(), buildOptions())
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.NotEmpty(t, res.OutputFiles)

	for _, of := range res.OutputFiles {
		require.False(t, filepath.IsAbs(of.Path), "output path %s must be workspace-relative", of.Path)
		require.True(t, strings.HasPrefix(of.Path, "dist/"), "output path %s must live under the outdir", of.Path)
		require.Equal(t, of.Contents, res.Contents[of.Path])
	}

	// Nothing is written to disk: write mode is forced off.
	_, statErr := os.Stat(filepath.Join(root, "dist"))
	require.True(t, os.IsNotExist(statErr))

	// Both entry points come back as initial files with hashed names resolved.
	names := map[string]string{}
	for _, ef := range res.InitialFiles {
		names[ef.Name] = ef.Extension
	}
	require.Equal(t, map[string]string{"main": ".js", "polyfills": ".js"}, names)
}

func TestBundle_FailureVariantOnSyntaxError(t *testing.T) {
	root := writeWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.js"),
		[]byte("const = broken syntax here"), 0644))

	b, err := New(root)
	require.NoError(t, err)

	res, err := b.Bundle(t.Context(), buildOptions())
	require.NoError(t, err, "a failed build is a result, not an error")
	require.True(t, res.Failed())
	require.NotEmpty(t, res.Failure.Errors)
	require.Empty(t, res.OutputFiles)
}

func TestSession_RebuildNormalizesLikeFreshBuild(t *testing.T) {
	root := writeWorkspace(t)
	b, err := New(root)
	require.NoError(t, err)

	session, err := b.NewSession(buildOptions())
	require.NoError(t, err)
	defer session.Dispose()

	first, err := session.Rebuild(t.Context())
	require.NoError(t, err)
	require.False(t, first.Failed())
	require.Len(t, initialNames(first), 2)

	// Change a source file and rebuild through the retained session.
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "util.js"),
		[]byte("export function greet(name) { return 'hi ' + name; }\n"), 0644))

	second, err := session.Rebuild(t.Context())
	require.NoError(t, err)
	require.False(t, second.Failed())

	for _, of := range second.OutputFiles {
		require.False(t, filepath.IsAbs(of.Path))
	}
	require.Len(t, initialNames(second), 2)
}

func TestBundle_DoesNotMutateCallerOptions(t *testing.T) {
	root := writeWorkspace(t)
	b, err := New(root)
	require.NoError(t, err)

	opts := buildOptions()
	_, err = b.Bundle(t.Context(), opts)
	require.NoError(t, err)

	// The forced flags are applied to a copy, never to the caller's value.
	require.False(t, opts.Metafile)
	require.Empty(t, opts.AbsWorkingDir)
}

func initialNames(res *Result) []string {
	var names []string
	for _, ef := range res.InitialFiles {
		names = append(names, ef.Name)
	}
	return names
}
