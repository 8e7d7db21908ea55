// Package config loads, normalizes, and validates animesync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// provider endpoints, the GitHub token and the ntfy topic. Validate rejects
// structurally invalid values at load time; CheckRequired lists every missing
// credential or endpoint so a run can refuse to start before touching the
// network.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
