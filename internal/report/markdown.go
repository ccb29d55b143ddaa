package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/secscan/internal/model"
)

// syntaxHTML highlights raw form markup in code blocks.
const syntaxHTML markdown.SyntaxHighlight = "html"

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing. It uses GitHub-flavored alerts and a mermaid pie chart.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("SecScan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Session", "`" + report.SessionID + "`"},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Pages", strconv.Itoa(len(report.Pages))},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText summarizes the outcome of the seed page.
func statusText(report *model.ScanReport) string {
	if len(report.Pages) == 0 {
		return "Not scanned"
	}
	seed := report.Pages[0]
	if seed.State == model.PageStateFailed {
		return "Fetch failed - " + seed.FailureReason
	}
	if report.Interrupted() {
		return "Interrupted - some checks did not finish"
	}
	return "Complete"
}

// writeSummary writes the criticality summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Severity Summary")
	md.PlainText("")

	counts := report.CountBySeverity()
	rows := make([][]string, 0, len(model.Severities())+1)
	for _, sev := range model.Severities() {
		rows = append(rows, []string{sev.Label(), strconv.Itoa(counts[sev])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(len(report.Findings)) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Criticality", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.HasFindings() {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, report, counts)
}

// writePieChart writes a mermaid pie chart of the criticality distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.Severity]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Criticality Distribution"),
		piechart.WithShowData(true),
	)
	for _, sev := range model.Severities() {
		if counts[sev] > 0 {
			chart.LabelAndIntValue(sev.Label(), uint64(counts[sev]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the most severe finding.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport, counts map[model.Severity]int) {
	switch {
	case report.Failed():
		md.Importantf("The target could not be fetched (%s). No checks were run.", report.Pages[0].FailureReason)
	case report.Interrupted() && !report.HasFindings():
		md.Warningf("The scan was interrupted before every check finished. An empty result is not conclusive.")
	case counts[model.SeverityCritical] > 0:
		md.Cautionf("%d critical finding(s) require immediate attention.", counts[model.SeverityCritical])
	case counts[model.SeverityHigh] > 0:
		md.Warningf("%d high criticality finding(s) should be addressed.", counts[model.SeverityHigh])
	case report.HasFindings():
		md.Note("Only medium or lower criticality findings detected.")
	default:
		md.Tip("No vulnerabilities found.")
	}
	md.PlainText("")
}

// writeFindings writes the findings overview table and one section per finding.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No vulnerabilities found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Findings))
	for i, f := range report.Findings {
		v := f.Vulnerability()
		rows[i] = []string{
			strconv.Itoa(i + 1),
			v.Name,
			v.CWE,
			v.Criticality.Label(),
			truncateString(location(f), 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Vulnerability", "CWE", "Criticality", "Location"},
		Rows:   rows,
	})
	md.PlainText("")

	for i, f := range report.Findings {
		w.writeFinding(md, i+1, f)
	}
}

// writeFinding writes the detail section of one finding.
func (w *MarkdownWriter) writeFinding(md *markdown.Markdown, n int, f model.Finding) {
	v := f.Vulnerability()
	md.H3f("%d. %s (%s)", n, v.Name, v.CWE)
	md.PlainText("")

	items := []string{
		"Criticality: " + v.Criticality.Label(),
		"URL: `" + f.Target() + "`",
	}
	switch d := f.(type) {
	case *model.SQLInjectionFinding:
		items = append(items, injectionItems(d.InjectionDetail)...)
	case *model.XSSFinding:
		items = append(items, injectionItems(d.InjectionDetail)...)
	case *model.MissingCSRFTokenFinding:
		items = append(items, "Form: `"+d.FormIdentifier+"`")
	}
	items = append(items, "Evidence: "+f.EvidenceSnippet())
	md.BulletList(items...)
	md.PlainText("")

	if d, ok := f.(*model.MissingCSRFTokenFinding); ok {
		md.CodeBlocks(syntaxHTML, d.RawForm)
		md.PlainText("")
	}
	md.Details("About "+v.Name, v.Description)
	md.PlainText("")
}

func injectionItems(d model.InjectionDetail) []string {
	return []string{
		"Parameter: `" + d.Parameter + "`",
		"Payload: `" + d.Payload + "`",
		"Request: `" + d.CandidateURL + "`",
	}
}

// location names where a finding sits within its page.
func location(f model.Finding) string {
	switch d := f.(type) {
	case *model.SQLInjectionFinding:
		return fmt.Sprintf("parameter %q", d.Parameter)
	case *model.XSSFinding:
		return fmt.Sprintf("parameter %q", d.Parameter)
	case *model.MissingCSRFTokenFinding:
		return "form " + d.FormIdentifier
	default:
		return f.Target()
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [SecScan](https://github.com/nao1215/secscan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
