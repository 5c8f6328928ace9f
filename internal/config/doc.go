// Package config loads, normalizes, and validates resyncd configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RESYNCD_COOKIES_FILE. The Config type centralizes every knob the CLI and
// scheduler need, so workspace directories, external binaries, and queue
// sizing are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
