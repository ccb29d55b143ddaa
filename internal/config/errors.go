package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be matched with
// errors.Is(). Errors about a specific target wrap the sentinel with the URL.
var (
	// ErrNoTarget is returned when no seed URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one http or https URL")

	// ErrInvalidScheme is returned when a target is not an absolute http or https URL.
	ErrInvalidScheme = errors.New("invalid target: only absolute http and https URLs can be scanned")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidConcurrency is returned when the payload concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid payload concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrProxyConflict is returned when both a proxy and the embedded Tor daemon are requested.
	ErrProxyConflict = errors.New("proxy and tor cannot be used together")
)
