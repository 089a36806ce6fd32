// Package config loads clusterd configuration from defaults, a YAML file,
// CLUSTERD_* environment variables and dot-path overrides, in that order.
package config
