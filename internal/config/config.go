package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Workspace string        `yaml:"workspace"`
	Build     BuildConfig   `yaml:"build"`
	Watch     WatchConfig   `yaml:"watch,omitempty"`
	Server    ServerConfig  `yaml:"server,omitempty"`
	History   HistoryConfig `yaml:"history,omitempty"`
	Notify    NotifyConfig  `yaml:"notify,omitempty"`
	Log       LogConfig     `yaml:"log,omitempty"`
}

// BuildConfig declares what gets bundled and how. Everything here maps onto
// esbuild options; the adapter forces metafile/no-write on top.
type BuildConfig struct {
	EntryPoints []string          `yaml:"entry_points"`
	Outdir      string            `yaml:"outdir"`
	Format      string            `yaml:"format,omitempty"`    // esm, cjs, iife
	Platform    string            `yaml:"platform,omitempty"`  // browser, node, neutral
	Target      string            `yaml:"target,omitempty"`    // es2015..es2024, esnext
	Splitting   bool              `yaml:"splitting,omitempty"`
	Minify      bool              `yaml:"minify,omitempty"`
	Sourcemap   string            `yaml:"sourcemap,omitempty"` // none, inline, linked, external
	EntryNames  string            `yaml:"entry_names,omitempty"`
	External    []string          `yaml:"external,omitempty"`
	Define      map[string]string `yaml:"define,omitempty"`
	Loaders     map[string]string `yaml:"loaders,omitempty"` // extension -> loader name
	TreeShaking bool              `yaml:"tree_shaking,omitempty"`
	LogLimit    int               `yaml:"log_limit,omitempty"`
}

// WatchConfig controls the watch/daemon rebuild loop.
type WatchConfig struct {
	Paths               []string `yaml:"paths,omitempty"`
	Debounce            Duration `yaml:"debounce,omitempty"`
	FullRebuildInterval Duration `yaml:"full_rebuild_interval,omitempty"`
}

// ServerConfig controls the daemon's dev HTTP server.
type ServerConfig struct {
	Addr    string `yaml:"addr,omitempty"`
	Metrics bool   `yaml:"metrics,omitempty"`
}

// HistoryConfig controls the SQLite build history. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// NotifyConfig controls NATS build-event publishing.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json
}

// Duration wraps time.Duration with YAML support for strings like "300ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"300ms\": %w", err)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults fills in defaults after unmarshal.
func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.Build.Outdir == "" {
		c.Build.Outdir = "dist"
	}
	if c.Build.Format == "" {
		c.Build.Format = "esm"
	}
	if c.Build.Platform == "" {
		c.Build.Platform = "browser"
	}
	if c.Build.EntryNames == "" {
		c.Build.EntryNames = "[name].[hash]"
	}
	if len(c.Watch.Paths) == 0 {
		c.Watch.Paths = []string{"src"}
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = Duration(300 * time.Millisecond)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "webbundler.builds"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Workspace: ".",
		Build: BuildConfig{
			EntryPoints: []string{"src/main.ts", "src/polyfills.ts"},
			Outdir:      "dist",
			Format:      "esm",
			Platform:    "browser",
			Target:      "es2020",
			Splitting:   true,
			Sourcemap:   "linked",
			EntryNames:  "[name].[hash]",
			Loaders: map[string]string{
				".svg": "text",
				".png": "dataurl",
			},
		},
		Watch: WatchConfig{
			Paths:    []string{"src"},
			Debounce: Duration(300 * time.Millisecond),
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: true,
		},
		History: HistoryConfig{
			Path: "./webbundler.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
