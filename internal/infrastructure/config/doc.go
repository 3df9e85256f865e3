// Package config loads and validates the agent's YAML configuration.
//
// Configuration is resolved in three layers: hardcoded defaults, the YAML
// file, then SIGNAGE_* environment variable overrides. Defaults are chosen
// so an empty file yields a runnable agent against a local broker.
package config
