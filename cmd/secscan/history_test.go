package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/secscan/internal/database"
	"github.com/nao1215/secscan/internal/model"
)

const historyTarget = "http://localhost:8080/product.php?id=1"

// seedHistory stores two sessions of historyTarget and returns the database directory.
// The second session adds an XSS finding and resolves the CSRF finding.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	sqli := &model.SQLInjectionFinding{
		TargetURL: historyTarget,
		InjectionDetail: model.InjectionDetail{
			Parameter:    "id",
			Payload:      "'",
			CandidateURL: historyTarget + "%27",
			Evidence:     "Detected SQL error pattern: 'you have an error in your sql syntax' in response.",
		},
	}
	xss := &model.XSSFinding{
		TargetURL: historyTarget,
		InjectionDetail: model.InjectionDetail{
			Parameter:    "id",
			Payload:      "<svg/onload=alert('XSS')>",
			CandidateURL: historyTarget + "%3Csvg%2Fonload%3Dalert%28%27XSS%27%29%3E",
			Evidence:     "Payload reflected in response",
		},
	}
	csrf := &model.MissingCSRFTokenFinding{
		TargetURL:      historyTarget,
		FormIdentifier: "action='N/A', method='POST', id='cart'",
		Evidence:       "No common anti-CSRF token input field name found in this form.",
	}

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reports := []struct {
		id       string
		findings []model.Finding
	}{
		{"previous-session", []model.Finding{sqli, csrf}},
		{"current-session", []model.Finding{sqli, xss}},
	}
	for i, r := range reports {
		report := model.NewScanReport(r.id, historyTarget)
		report.StartedAt = started.Add(time.Duration(i) * time.Hour)
		report.AddPage(model.PageResult{URL: historyTarget, State: model.PageStateScanned, Findings: r.findings})
		report.FinishedAt = report.StartedAt.Add(time.Second)
		if err := db.SaveScanReport(context.Background(), report); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
	}
	return dir
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestHistoryCmd tests listing and comparing stored sessions.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	t.Run("lists targets", func(t *testing.T) {
		t.Parallel()
		out, err := runHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scanned targets (1)") || !strings.Contains(out, historyTarget) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("lists sessions newest first", func(t *testing.T) {
		t.Parallel()
		out, err := runHistory(t, "--db-dir", dir, historyTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		current := strings.Index(out, "current-session")
		previous := strings.Index(out, "previous-session")
		if current < 0 || previous < 0 || current > previous {
			t.Errorf("expected current session before previous session:\n%s", out)
		}
		if !strings.Contains(out, "H:2") || !strings.Contains(out, "H:1 M:1") {
			t.Errorf("expected criticality counts:\n%s", out)
		}
	})

	t.Run("diff in text", func(t *testing.T) {
		t.Parallel()
		out, err := runHistory(t, "--db-dir", dir, "--diff", historyTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"Risk Status: WORSENED",
			"New Findings (1):",
			"[+] [High] Cross-Site Scripting (XSS)",
			"Resolved Findings (1):",
			"[-] [Medium]",
			"Unchanged: 1 findings",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q\n%s", want, out)
			}
		}
	})

	t.Run("diff in markdown", func(t *testing.T) {
		t.Parallel()
		out, err := runHistory(t, "--db-dir", dir, "-d", "-m", historyTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"# Scan Comparison: " + historyTarget,
			"**Risk Status:** WORSENED",
			"| Metric",
			"## Resolved Findings (1)",
			"~~",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q\n%s", want, out)
			}
		}
	})

	t.Run("diff with explicit session", func(t *testing.T) {
		t.Parallel()
		out, err := runHistory(t, "--db-dir", dir, "--with", "current-session", historyTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Risk Status: UNCHANGED") || !strings.Contains(out, "Unchanged: 2 findings") {
			t.Errorf("expected a session compared with itself to be unchanged:\n%s", out)
		}
	})

	t.Run("diff with unknown session", func(t *testing.T) {
		t.Parallel()
		if _, err := runHistory(t, "--db-dir", dir, "--with", "no-such-session", historyTarget); err == nil {
			t.Error("expected error for unknown session")
		}
	})

	t.Run("diff requires a target", func(t *testing.T) {
		t.Parallel()
		if _, err := runHistory(t, "--db-dir", dir, "--diff"); err == nil {
			t.Error("expected error without target")
		}
	})

	t.Run("rejects invalid target", func(t *testing.T) {
		t.Parallel()
		if _, err := runHistory(t, "--db-dir", dir, "ftp://example.com/"); err == nil {
			t.Error("expected error for invalid target")
		}
	})
}

// TestHistoryCmdDelete tests removing a stored session.
func TestHistoryCmdDelete(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	out, err := runHistory(t, "--db-dir", dir, "--delete", "previous-session")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Deleted session previous-session") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = runHistory(t, "--db-dir", dir, historyTarget)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "previous-session") || !strings.Contains(out, "current-session") {
		t.Errorf("expected only the current session to remain:\n%s", out)
	}

	if _, err := runHistory(t, "--db-dir", dir, "--delete", "previous-session"); err == nil {
		t.Error("expected error when deleting a missing session")
	}
}

// TestHistoryCmdWithoutDatabase tests the message shown before the first scan.
func TestHistoryCmdWithoutDatabase(t *testing.T) {
	t.Parallel()

	out, err := runHistory(t, "--db-dir", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No scan history yet") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{3, "+3"},
		{0, "0"},
		{-2, "-2"},
	}
	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}

func TestFormatCounts(t *testing.T) {
	t.Parallel()

	if got := formatCounts(nil); got != noFindingsMessage {
		t.Errorf("formatCounts(nil) = %q", got)
	}
	counts := map[model.Severity]int{model.SeverityCritical: 1, model.SeverityLow: 4}
	if got := formatCounts(counts); got != "C:1 L:4" {
		t.Errorf("formatCounts = %q, want %q", got, "C:1 L:4")
	}
}
