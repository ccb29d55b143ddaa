package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/secscan/internal/fetch"
	"github.com/nao1215/secscan/internal/pipeline"
	"github.com/nao1215/secscan/internal/tor"
)

const (
	// AppName is the application name used for XDG directory paths.
	AppName = "secscan"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultPayloadConcurrency of 1 sends the payloads of a parameter one
	// after another.
	DefaultPayloadConcurrency = 1

	// DefaultBatchSize is the number of seeds scanned at once.
	DefaultBatchSize = pipeline.DefaultBatchConcurrency

	// DefaultTorStartupTimeout bounds the bootstrap of the embedded Tor daemon.
	DefaultTorStartupTimeout = tor.DefaultStartupTimeout
)

// Config holds all configuration options for SecScan.
// It is populated from the config file and CLI flags and passed down
// explicitly rather than kept in global state.
type Config struct {
	// Targets is the list of seed URLs to scan.
	Targets []string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// Proxy is an optional http, https or socks5 proxy URL.
	Proxy string

	// Tor routes requests through an embedded Tor daemon started for the scan.
	Tor bool

	// TorStartupTimeout bounds the bootstrap of the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// PayloadConcurrency is the number of payload requests sent in parallel
	// for one parameter. 1 keeps them sequential.
	PayloadConcurrency int

	// BatchSize is the number of seeds scanned concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .secscan is searched in the current and home directories.
	ConfigFilePath string

	// MarkdownReport writes the report as Markdown instead of plain text.
	MarkdownReport bool

	// PageSummary appends the list of processed pages to the text report.
	PageSummary bool

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// SaveHistory stores each session in the history database.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/secscan on Linux).
	DBDir string

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// When empty, no endpoint is served.
	MetricsAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:            DefaultTimeout,
		MaxBodySize:        DefaultMaxBodySize,
		PayloadConcurrency: DefaultPayloadConcurrency,
		BatchSize:          DefaultBatchSize,
		TorStartupTimeout:  DefaultTorStartupTimeout,
		SaveHistory:        true,
		DBDir:              XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for SecScan.
// On Linux: ~/.local/share/secscan
// On macOS: ~/Library/Application Support/secscan
// On Windows: %LOCALAPPDATA%\secscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for SecScan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if err := ValidateTarget(target); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.PayloadConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Tor && c.Proxy != "" {
		return ErrProxyConflict
	}
	return nil
}

// ValidateTarget checks that target is an absolute http or https URL with a host.
func ValidateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidScheme, target, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidScheme, target)
	}
	return nil
}
