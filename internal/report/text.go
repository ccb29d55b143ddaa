package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/secscan/internal/model"
)

const (
	findingRule = "-----------------------------------------"
	reportRule  = "========================================="
)

// FormatFinding renders one finding as a block of lines framed by dashes.
// Injection findings list the parameter and payload, CSRF findings the form
// and the beginning of its markup.
func FormatFinding(f model.Finding) string {
	v := f.Vulnerability()
	lines := []string{
		findingRule,
		fmt.Sprintf("Vulnerability: %s (%s)", v.Name, v.CWE),
		"Criticality: " + v.Criticality.Label(),
		"URL: " + f.Target(),
	}

	switch d := f.(type) {
	case *model.SQLInjectionFinding:
		lines = append(lines, injectionLines(d.InjectionDetail)...)
	case *model.XSSFinding:
		lines = append(lines, injectionLines(d.InjectionDetail)...)
	case *model.MissingCSRFTokenFinding:
		lines = append(lines,
			"Form Details: "+d.FormIdentifier,
			"Evidence: "+d.Evidence,
			"Raw Form Snippet (first 500 chars): "+d.RawForm,
		)
	default:
		lines = append(lines, "Evidence: "+f.EvidenceSnippet())
	}

	lines = append(lines, findingRule)
	return strings.Join(lines, "\n")
}

func injectionLines(d model.InjectionDetail) []string {
	return []string{
		"Parameter: " + d.Parameter,
		"Payload: " + d.Payload,
		"Evidence: " + d.Evidence,
	}
}

// WriteScanReport writes the text report for target to w.
// An empty findings list produces the "No vulnerabilities found." report.
func WriteScanReport(w io.Writer, findings []model.Finding, target string) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n" + reportRule + "\n")
	sb.WriteString("Scan Report for: " + target + "\n")
	sb.WriteString(reportRule + "\n\n")

	if len(findings) == 0 {
		sb.WriteString("No vulnerabilities found.\n")
	} else {
		fmt.Fprintf(&sb, "Found %d vulnerability/vulnerabilities:\n\n", len(findings))
		for _, f := range findings {
			sb.WriteString(FormatFinding(f))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString(reportRule + "\n")
	sb.WriteString("End of report.\n")
	sb.WriteString(reportRule + "\n\n")

	return io.WriteString(w, sb.String())
}

// TextWriter writes the plain-text report.
type TextWriter struct {
	baseWriter

	// pages appends a per-page status list after the report.
	pages bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithPageSummary appends one line per scanned page after the report,
// giving its state and, for failed pages, the failure reason.
func WithPageSummary(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.pages = show
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the text report for report's target and findings.
func (w *TextWriter) Write(report *model.ScanReport) (int, error) {
	n, err := WriteScanReport(w.output, report.Findings, report.Target)
	if err != nil || !w.pages || len(report.Pages) == 0 {
		return n, err
	}

	var sb strings.Builder
	sb.WriteString("Pages:\n")
	for _, p := range report.Pages {
		fmt.Fprintf(&sb, "  [%s] %s", p.State, p.URL)
		if p.FailureReason != "" {
			fmt.Fprintf(&sb, " (%s)", p.FailureReason)
		}
		if p.Interrupted {
			sb.WriteString(" (interrupted)")
		}
		sb.WriteString("\n")
	}
	m, err := io.WriteString(w.output, sb.String())
	return n + m, err
}
