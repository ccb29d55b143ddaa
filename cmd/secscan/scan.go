package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/secscan/internal/config"
	"github.com/nao1215/secscan/internal/database"
	"github.com/nao1215/secscan/internal/fetch"
	"github.com/nao1215/secscan/internal/log"
	"github.com/nao1215/secscan/internal/metrics"
	"github.com/nao1215/secscan/internal/model"
	"github.com/nao1215/secscan/internal/report"
	"github.com/nao1215/secscan/internal/scanner"
	"github.com/nao1215/secscan/internal/tor"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Scan web pages for SQL injection, XSS and missing CSRF tokens",
		Long: `Scan fetches each seed URL and checks it for vulnerabilities.

For every seed:
- Each query parameter is probed with SQL injection payloads, then XSS payloads
- Every form is checked for an anti-CSRF token field
- Links on the page are extracted but not followed

A seed that cannot be fetched is reported as failed; the other seeds are
still scanned.

Examples:
  # Scan a single page
  secscan scan "http://localhost:8080/product.php?id=1"

  # Scan several pages, two at a time
  secscan scan -b 2 http://localhost:8080/a?id=1 http://localhost:8080/b?q=x

  # Send payloads through a proxy with a longer timeout
  secscan scan --proxy socks5://127.0.0.1:9050 -t 30s "http://example.com/?id=1"

  # Scan an onion service through an embedded Tor daemon
  secscan scan --tor "http://exampleonionaddress.onion/search?q=test"

  # Write a Markdown report to a file
  secscan scan -m -o report.md "http://localhost:8080/search?q=test"

  # Expose Prometheus metrics while scanning
  secscan scan --metrics-addr 127.0.0.1:9101 "http://localhost:8080/?id=1"`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().StringP("proxy", "x", "",
		"Proxy URL (http, https, socks5 or socks5h)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and send every request through it")

	// Concurrency flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultPayloadConcurrency,
		"Number of payload requests sent in parallel per parameter")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds scanned concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: ./.secscan, XDG config dir, then ~/.secscan)")

	// Report flags
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report")
	cmd.Flags().BoolP("pages", "p", false,
		"List processed pages at the end of the text report")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History and metrics
	cmd.Flags().Bool("no-history", false,
		"Do not save the session to the history database")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address during the scan (e.g. 127.0.0.1:9101)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the config file and cobra flags,
// in increasing order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Targets = args
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly requested config file must exist. Otherwise a missing
	// file just means built-in defaults.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("tor") {
		if cfg.Tor, err = flags.GetBool("tor"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.PayloadConcurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("markdown") {
		if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("metrics-addr") {
		if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
			return nil, err
		}
	}
	if noHistory, err := flags.GetBool("no-history"); err != nil {
		return nil, err
	} else if noHistory {
		cfg.SaveHistory = false
	}
	if cfg.PageSummary, err = flags.GetBool("pages"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newFetcher builds the HTTP fetcher from the configuration.
func newFetcher(cfg *config.Config) (*fetch.HTTPFetcher, error) {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.Proxy != "" {
		opts = append(opts, fetch.WithProxy(cfg.Proxy))
	}
	return fetch.New(opts...)
}

// runScan executes the scan and writes one report per seed to stdout or
// the configured report file.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"payloadConcurrency", cfg.PayloadConcurrency,
		"saveHistory", cfg.SaveHistory,
	)

	if cfg.Tor {
		stopTor, err := startTor(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stopTor()
	}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	recorder := metrics.NewRecorder()
	if cfg.MetricsAddr != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Serve(metricsCtx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			stopMetrics()
			wg.Wait()
		}()
	}

	var db *database.HistoryDB
	if cfg.SaveHistory {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)

	s := scanner.New(recorder.InstrumentFetcher(fetcher),
		scanner.WithLogger(logger),
		scanner.WithRecorder(recorder),
		scanner.WithPayloadConcurrency(cfg.PayloadConcurrency),
		scanner.WithBatchConcurrency(cfg.BatchSize),
	)

	startTime := time.Now()

	// Reports are written in completion order, one at a time.
	var mu sync.Mutex
	var writeErr error
	err = s.ScanBatchWithCallback(ctx, cfg.Targets, func(scanReport *model.ScanReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if _, err := writer.Write(scanReport); err != nil {
			logger.Error("report failed", "target", scanReport.Target, "error", err)
			writeErr = errors.Join(writeErr, err)
		}
		if err := saveScanReport(ctx, db, scanReport, logger); err != nil {
			logger.Error("failed to save scan report", "target", scanReport.Target, "error", err)
		}
	})

	logger.Info("scan completed",
		"targets", len(cfg.Targets),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if err != nil {
		return fmt.Errorf("scan interrupted: %w", err)
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write report: %w", writeErr)
	}
	return nil
}

// startTor launches the embedded Tor daemon and points cfg.Proxy at it.
func startTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(), error) {
	logger.Info("starting embedded Tor daemon (this may take a few minutes)...")

	daemon := tor.NewDaemon(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := daemon.Start(ctx); err != nil {
		return nil, err
	}
	proxyURL, err := daemon.ProxyURL()
	if err != nil {
		_ = daemon.Stop() //nolint:errcheck // Best effort cleanup
		return nil, err
	}
	cfg.Proxy = proxyURL
	logger.Info("embedded Tor daemon started", "proxy", proxyURL)

	return func() {
		if err := daemon.Stop(); err != nil {
			logger.Warn("failed to stop embedded Tor daemon", "error", err)
		}
	}, nil
}

// openOutput opens the report file, creating parent directories, or
// returns stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain sensitive information that should only be readable by the owner
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	if cfg.MarkdownReport {
		return report.NewMarkdownWriter(output)
	}
	return report.NewTextWriter(output, report.WithPageSummary(cfg.PageSummary))
}

// saveScanReport saves the scan report to the database if enabled.
// If db is nil, this function is a no-op.
func saveScanReport(ctx context.Context, db *database.HistoryDB, scanReport *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	// A cancelled scan still gets recorded.
	if err := db.SaveScanReport(context.WithoutCancel(ctx), scanReport); err != nil {
		return err
	}
	logger.Debug("scan report saved", "scan_id", scanReport.SessionID, "target", scanReport.Target)
	return nil
}
