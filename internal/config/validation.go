package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for problems that would only surface
// later as confusing bundler errors. Option-name validation is left to
// ToBuildOptions, which already rejects unknown enum values.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Build.EntryPoints) == 0 {
		problems = append(problems, "build.entry_points must list at least one entry point")
	}
	for _, ep := range c.Build.EntryPoints {
		if strings.TrimSpace(ep) == "" {
			problems = append(problems, "build.entry_points must not contain empty entries")
			break
		}
	}
	if c.Build.Splitting && c.Build.Format != "esm" {
		problems = append(problems, "build.splitting requires build.format: esm")
	}
	if c.Watch.Debounce < 0 {
		problems = append(problems, "watch.debounce must not be negative")
	}
	if c.Notify.Enabled && c.Notify.NATSURL == "" {
		problems = append(problems, "notify.nats_url is required when notify.enabled is true")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
