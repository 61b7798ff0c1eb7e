// Package config loads, normalizes, and validates patientboard configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// patient API credentials (PATIENTBOARD_API_URL, PATIENTBOARD_API_AUTH). The
// Config type centralizes the photo root, state and log directories, template
// layout inputs, and the external service settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
