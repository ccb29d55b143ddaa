package config

import (
	"fmt"
	"time"
)

// File represents the structure of the .secscan configuration file.
// Every field is optional. Set fields replace the built-in defaults and are
// in turn overridden by CLI flags.
type File struct {
	// Targets are scanned when no URL is given on the command line.
	Targets []string `yaml:"targets,omitempty"`

	// Timeout is the per-request timeout, e.g. "10s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64 `yaml:"maxBodySize,omitempty"`

	// Proxy is an http, https or socks5 proxy URL.
	Proxy string `yaml:"proxy,omitempty"`

	// Tor starts an embedded Tor daemon and sends every request through it.
	Tor *bool `yaml:"tor,omitempty"`

	// TorStartupTimeout bounds the Tor bootstrap, e.g. "3m".
	TorStartupTimeout time.Duration `yaml:"torStartupTimeout,omitempty"`

	// PayloadConcurrency is the number of parallel payload requests per parameter.
	PayloadConcurrency int `yaml:"payloadConcurrency,omitempty"`

	// BatchSize is the number of seeds scanned concurrently.
	BatchSize int `yaml:"batchSize,omitempty"`

	// Markdown selects the Markdown report format.
	Markdown *bool `yaml:"markdown,omitempty"`

	// History enables or disables saving sessions to the history database.
	History *bool `yaml:"history,omitempty"`

	// HistoryDir overrides the directory of the history database.
	HistoryDir string `yaml:"historyDir,omitempty"`

	// MetricsAddr serves Prometheus metrics on this address during a scan.
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}

// Apply merges the file settings into cfg. Zero values leave cfg unchanged,
// and Targets only fill an empty target list.
func (f *File) Apply(cfg *Config) {
	if len(cfg.Targets) == 0 && len(f.Targets) > 0 {
		cfg.Targets = append([]string(nil), f.Targets...)
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.MaxBodySize != 0 {
		cfg.MaxBodySize = f.MaxBodySize
	}
	if f.Proxy != "" {
		cfg.Proxy = f.Proxy
	}
	if f.Tor != nil {
		cfg.Tor = *f.Tor
	}
	if f.TorStartupTimeout != 0 {
		cfg.TorStartupTimeout = f.TorStartupTimeout
	}
	if f.PayloadConcurrency != 0 {
		cfg.PayloadConcurrency = f.PayloadConcurrency
	}
	if f.BatchSize != 0 {
		cfg.BatchSize = f.BatchSize
	}
	if f.Markdown != nil {
		cfg.MarkdownReport = *f.Markdown
	}
	if f.History != nil {
		cfg.SaveHistory = *f.History
	}
	if f.HistoryDir != "" {
		cfg.DBDir = f.HistoryDir
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
}

// validate rejects values that can never form a valid Config.
// Zero values are allowed because they mean "not set".
func (f *File) validate() error {
	for _, target := range f.Targets {
		if err := ValidateTarget(target); err != nil {
			return err
		}
	}
	switch {
	case f.Timeout < 0:
		return ErrInvalidTimeout
	case f.MaxBodySize < 0:
		return ErrInvalidMaxBodySize
	case f.PayloadConcurrency < 0:
		return ErrInvalidConcurrency
	case f.BatchSize < 0:
		return ErrInvalidBatchSize
	case f.TorStartupTimeout < 0:
		return fmt.Errorf("%w: torStartupTimeout", ErrInvalidTimeout)
	case f.Tor != nil && *f.Tor && f.Proxy != "":
		return ErrProxyConflict
	}
	return nil
}
