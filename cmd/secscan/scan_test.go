package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/secscan/internal/config"
	"github.com/nao1215/secscan/internal/database"
	"github.com/nao1215/secscan/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newVulnerableServer serves a page with a SQL error on quotes, a reflected
// parameter and a form without an anti-CSRF token.
func newVulnerableServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		id := r.URL.Query().Get("id")
		if strings.ContainsAny(id, `'"`) {
			fmt.Fprint(w, "You have an error in your SQL syntax near '1''")
			return
		}
		fmt.Fprintf(w, `<html><body><p>%s</p><form method="post"><input name="qty"></form></body></html>`, id)
	})
	mux.HandleFunc("/safe", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><a href="/product?id=1">product</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestNewScanCmd tests the scan command flags.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"timeout", "t", config.DefaultTimeout.String()},
		{"max-body-size", "", fmt.Sprint(config.DefaultMaxBodySize)},
		{"proxy", "x", ""},
		{"tor", "", "false"},
		{"concurrency", "n", fmt.Sprint(config.DefaultPayloadConcurrency)},
		{"batch", "b", fmt.Sprint(config.DefaultBatchSize)},
		{"config", "c", ""},
		{"markdown", "m", "false"},
		{"pages", "p", "false"},
		{"output", "o", ""},
		{"no-history", "", "false"},
		{"metrics-addr", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestBuildConfig tests the precedence of defaults, config file and flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".secscan")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		return path
	}

	t.Run("config file overrides defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "timeout: 30s\nbatchSize: 8\nhistory: false\ntargets:\n  - http://example.com/?id=1\n")

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
		}
		if cfg.BatchSize != 8 {
			t.Errorf("BatchSize = %d, want 8", cfg.BatchSize)
		}
		if cfg.SaveHistory {
			t.Error("expected history to be disabled by the config file")
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "http://example.com/?id=1" {
			t.Errorf("Targets = %v", cfg.Targets)
		}
		if cfg.PayloadConcurrency != config.DefaultPayloadConcurrency {
			t.Errorf("PayloadConcurrency = %d, want default", cfg.PayloadConcurrency)
		}
	})

	t.Run("flags override config file", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "timeout: 30s\nbatchSize: 8\nmarkdown: true\ntargets:\n  - http://example.com/?id=1\n")

		cmd := NewScanCmd()
		args := []string{"--config", path, "-t", "5s", "-b", "2", "--markdown=false", "-p", "-o", "out.txt", "--no-history"}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"http://localhost/?q=a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
		}
		if cfg.BatchSize != 2 {
			t.Errorf("BatchSize = %d, want 2", cfg.BatchSize)
		}
		if cfg.MarkdownReport {
			t.Error("expected --markdown=false to override the config file")
		}
		if !cfg.PageSummary || cfg.ReportFile != "out.txt" || cfg.SaveHistory {
			t.Errorf("unexpected report settings: %+v", cfg)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "http://localhost/?q=a" {
			t.Errorf("expected command line targets to win, got %v", cfg.Targets)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()
		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		_, err := buildConfig(cmd, []string{"http://localhost/"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "timeout: [not a duration\n")

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildConfig(cmd, nil); err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestRunScanCmdValidation tests that invalid input is rejected before scanning.
func TestRunScanCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"no target", []string{"--no-history"}, config.ErrNoTarget},
		{"unsupported scheme", []string{"--no-history", "ftp://example.com/"}, config.ErrInvalidScheme},
		{"zero batch size", []string{"--no-history", "-b", "0", "http://example.com/"}, config.ErrInvalidBatchSize},
		{"proxy with tor", []string{"--no-history", "--tor", "-x", "socks5://127.0.0.1:9050", "http://example.com/"}, config.ErrProxyConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := NewScanCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append(tt.args, "--config", writeEmptyConfig(t)))

			err := cmd.Execute()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secscan")
	if err := os.WriteFile(path, []byte("# empty\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestRunScan tests a full scan against a local HTTP server.
func TestRunScan(t *testing.T) {
	t.Parallel()

	server := newVulnerableServer(t)

	t.Run("writes text report and saves history", func(t *testing.T) {
		t.Parallel()

		target := server.URL + "/product?id=1"
		cfg := config.NewConfig()
		cfg.Targets = []string{target, server.URL + "/safe"}
		cfg.DBDir = t.TempDir()
		cfg.PageSummary = true

		var out bytes.Buffer
		if err := runScan(context.Background(), cfg, quietLogger(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := out.String()
		for _, want := range []string{
			"Scan Report for: " + target,
			"Found 3 vulnerability/vulnerabilities:",
			"Scan Report for: " + server.URL + "/safe",
			"No vulnerabilities found.",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		sessions, err := db.ListSessions(context.Background(), target)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) != 1 {
			t.Fatalf("expected 1 session, got %d", len(sessions))
		}
		if sessions[0].Total() != 3 || sessions[0].Counts[model.SeverityHigh] != 2 {
			t.Errorf("unexpected counts: %v", sessions[0].Counts)
		}

		targets, err := db.ListTargets(context.Background())
		if err != nil {
			t.Fatalf("failed to list targets: %v", err)
		}
		if len(targets) != 2 {
			t.Errorf("expected 2 targets, got %v", targets)
		}
	})

	t.Run("writes markdown report to file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Targets = []string{server.URL + "/product?id=1"}
		cfg.SaveHistory = false
		cfg.MarkdownReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "scan.md")

		var out bytes.Buffer
		if err := runScan(context.Background(), cfg, quietLogger(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", out.String())
		}

		content, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.HasPrefix(string(content), "# ") {
			t.Errorf("expected Markdown heading, got %q", string(content))
		}
		if !strings.Contains(string(content), "SQL Injection") {
			t.Errorf("expected SQL injection in report:\n%s", content)
		}
	})

	t.Run("unreachable target is reported as failed", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		target := closed.URL + "/"
		closed.Close()

		cfg := config.NewConfig()
		cfg.Targets = []string{target}
		cfg.SaveHistory = false
		cfg.PageSummary = true
		cfg.Timeout = 2 * time.Second

		var out bytes.Buffer
		if err := runScan(context.Background(), cfg, quietLogger(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "[failed] "+target) {
			t.Errorf("expected failed page in summary:\n%s", out.String())
		}
	})

	t.Run("invalid proxy", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Targets = []string{server.URL + "/safe"}
		cfg.SaveHistory = false
		cfg.Proxy = "ftp://127.0.0.1:21"

		if err := runScan(context.Background(), cfg, quietLogger(), io.Discard); err == nil {
			t.Error("expected error for unsupported proxy scheme")
		}
	})
}

// TestOpenOutput tests report destination selection.
func TestOpenOutput(t *testing.T) {
	t.Parallel()

	t.Run("empty path uses stdout", func(t *testing.T) {
		t.Parallel()
		var stdout bytes.Buffer
		w, closeFn, err := openOutput("", &stdout)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeFn()
		if w != &stdout {
			t.Error("expected stdout writer")
		}
	})

	t.Run("file is created with parent directories", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "a", "b", "report.txt")
		w, closeFn, err := openOutput(path, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := io.WriteString(w, "report"); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		closeFn()

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(content) != "report" {
			t.Errorf("content = %q", content)
		}
	})
}
