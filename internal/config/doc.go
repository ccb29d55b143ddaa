// Package config provides configuration structures and utilities for SecScan.
// It defines the scan options (targets, timeouts, concurrency), report
// preferences and history storage location, and loads defaults from an
// optional .secscan YAML file.
package config
