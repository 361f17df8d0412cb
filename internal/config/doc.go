// Package config loads, normalizes, and validates anatomap configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ANATOMAP_MODEL_BIN. The Config type centralizes every knob the CLI and
// engine need: model resources (terminology scheme, mapping CSV, label
// dictionary), workspace and output directories, and artifact layout.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
