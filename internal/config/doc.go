// Package config loads, normalizes, and validates bettermarkers configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the BETTERMARKERS_EXIFTOOL
// environment fallback for the external metadata tool. The Config type holds
// the recovery queue location, embed retry presets, and logging options.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
