package config

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// ToBuildOptions translates the declared build settings into esbuild options.
// The adapter layer forces Metafile/Write on top of whatever is returned
// here, so those two flags are deliberately not set.
func (c *Config) ToBuildOptions() (api.BuildOptions, error) {
	opts := api.BuildOptions{
		EntryPoints: c.Build.EntryPoints,
		Outdir:      c.Build.Outdir,
		Bundle:      true,
		Splitting:   c.Build.Splitting,
		EntryNames:  c.Build.EntryNames,
		External:    c.Build.External,
		Define:      c.Build.Define,
		LogLevel:    api.LogLevelSilent, // diagnostics go through the reporter
		LogLimit:    c.Build.LogLimit,
	}

	if c.Build.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
	if c.Build.TreeShaking {
		opts.TreeShaking = api.TreeShakingTrue
	}

	format, err := parseFormat(c.Build.Format)
	if err != nil {
		return api.BuildOptions{}, err
	}
	opts.Format = format

	platform, err := parsePlatform(c.Build.Platform)
	if err != nil {
		return api.BuildOptions{}, err
	}
	opts.Platform = platform

	target, err := parseTarget(c.Build.Target)
	if err != nil {
		return api.BuildOptions{}, err
	}
	opts.Target = target

	sourcemap, err := parseSourcemap(c.Build.Sourcemap)
	if err != nil {
		return api.BuildOptions{}, err
	}
	opts.Sourcemap = sourcemap

	if len(c.Build.Loaders) > 0 {
		opts.Loader = make(map[string]api.Loader, len(c.Build.Loaders))
		for ext, name := range c.Build.Loaders {
			loader, err := parseLoader(name)
			if err != nil {
				return api.BuildOptions{}, fmt.Errorf("loader for %s: %w", ext, err)
			}
			opts.Loader[ext] = loader
		}
	}

	return opts, nil
}

func parseFormat(s string) (api.Format, error) {
	switch s {
	case "", "esm":
		return api.FormatESModule, nil
	case "cjs":
		return api.FormatCommonJS, nil
	case "iife":
		return api.FormatIIFE, nil
	}
	return api.FormatDefault, fmt.Errorf("unknown format %q (expected esm, cjs or iife)", s)
}

func parsePlatform(s string) (api.Platform, error) {
	switch s {
	case "", "browser":
		return api.PlatformBrowser, nil
	case "node":
		return api.PlatformNode, nil
	case "neutral":
		return api.PlatformNeutral, nil
	}
	return api.PlatformDefault, fmt.Errorf("unknown platform %q (expected browser, node or neutral)", s)
}

func parseTarget(s string) (api.Target, error) {
	switch s {
	case "":
		return api.DefaultTarget, nil
	case "esnext":
		return api.ESNext, nil
	case "es5":
		return api.ES5, nil
	case "es2015":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2020":
		return api.ES2020, nil
	case "es2021":
		return api.ES2021, nil
	case "es2022":
		return api.ES2022, nil
	case "es2023":
		return api.ES2023, nil
	case "es2024":
		return api.ES2024, nil
	}
	return api.DefaultTarget, fmt.Errorf("unknown target %q", s)
}

func parseSourcemap(s string) (api.SourceMap, error) {
	switch s {
	case "", "none":
		return api.SourceMapNone, nil
	case "inline":
		return api.SourceMapInline, nil
	case "linked":
		return api.SourceMapLinked, nil
	case "external":
		return api.SourceMapExternal, nil
	}
	return api.SourceMapNone, fmt.Errorf("unknown sourcemap mode %q (expected none, inline, linked or external)", s)
}

func parseLoader(s string) (api.Loader, error) {
	switch s {
	case "js":
		return api.LoaderJS, nil
	case "jsx":
		return api.LoaderJSX, nil
	case "ts":
		return api.LoaderTS, nil
	case "tsx":
		return api.LoaderTSX, nil
	case "css":
		return api.LoaderCSS, nil
	case "json":
		return api.LoaderJSON, nil
	case "text":
		return api.LoaderText, nil
	case "base64":
		return api.LoaderBase64, nil
	case "dataurl":
		return api.LoaderDataURL, nil
	case "file":
		return api.LoaderFile, nil
	case "binary":
		return api.LoaderBinary, nil
	case "copy":
		return api.LoaderCopy, nil
	case "empty":
		return api.LoaderEmpty, nil
	}
	return api.LoaderNone, fmt.Errorf("unknown loader %q", s)
}
