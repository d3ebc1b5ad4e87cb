// Package config loads, normalizes, and validates quizbooth configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// wizard and CLI need: service endpoints, the photo upload budget, capture
// tooling, and logging output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
