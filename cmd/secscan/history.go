package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/secscan/internal/config"
	"github.com/nao1215/secscan/internal/database"
	"github.com/nao1215/secscan/internal/model"
)

const noFindingsMessage = "No findings"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show and compare past scans",
		Long: `History lists the scan sessions stored for a target URL.

With --diff it compares the two latest sessions of the target and shows:
- New findings that appeared since the previous scan
- Resolved findings that are no longer present
- Changes in the number of findings per criticality

Findings are matched by vulnerability type, page URL and parameter or form.

Examples:
  # List all scanned targets
  secscan history

  # List sessions of a target
  secscan history "http://localhost:8080/product.php?id=1"

  # Compare the latest two sessions
  secscan history --diff "http://localhost:8080/product.php?id=1"

  # Compare a session with the latest one
  secscan history --diff --with 3f2b6c1e-... "http://localhost:8080/product.php?id=1"

  # Output the comparison in Markdown
  secscan history --diff -m "http://localhost:8080/product.php?id=1"

  # Delete a session and its findings
  secscan history --delete 3f2b6c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("diff", "d", false,
		"Compare the latest session with the previous one")
	cmd.Flags().StringP("with", "w", "",
		"Compare the latest session with this session ID instead of the previous one")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("delete", "",
		"Delete the session with this ID and its findings")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	withID, err := cmd.Flags().GetString("with")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	deleteID, err := cmd.Flags().GetString("delete")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Validate arguments before opening the database
	var target string
	if len(args) > 0 {
		target = args[0]
		if err := config.ValidateTarget(target); err != nil {
			return err
		}
	} else if diff || withID != "" {
		return errors.New("a target URL is required for --diff (run 'secscan history' to list targets)")
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No scan history yet. Use 'secscan scan <url>' to scan a target.")
			return nil
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID != "":
		return deleteSession(ctx, db, out, deleteID)
	case target == "":
		return listTargets(ctx, db, out)
	case diff || withID != "":
		return runComparison(ctx, db, out, target, withID, markdownOutput)
	default:
		return listSessions(ctx, db, out, target)
	}
}

// deleteSession removes one session from the history.
func deleteSession(ctx context.Context, db *database.HistoryDB, out io.Writer, id string) error {
	deleted, err := db.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return fmt.Errorf("session not found: %s", id)
	}
	fmt.Fprintf(out, "Deleted session %s\n", id)
	return nil
}

// listTargets lists every target that has sessions in the database.
func listTargets(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No scanned targets found in the database.")
		fmt.Fprintln(out, "\nUse 'secscan scan <url>' to scan a target.")
		return nil
	}

	fmt.Fprintf(out, "Scanned targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'secscan history <url>' to see the sessions of a target.")
	return nil
}

// listSessions lists all sessions of a target, newest first.
func listSessions(ctx context.Context, db *database.HistoryDB, out io.Writer, target string) error {
	sessions, err := db.ListSessions(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", target)
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", target, len(sessions))
	fmt.Fprintf(out, "  %-36s  %-20s  %-8s  %s\n", "Session", "Date", "Status", "Findings")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))

	for _, s := range sessions {
		fmt.Fprintf(out, "  %-36s  %-20s  %-8s  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Status,
			formatCounts(s.Counts),
		)
	}

	fmt.Fprintln(out, "\nUse 'secscan history --diff <url>' to compare the latest two scans.")
	return nil
}

// formatCounts formats the criticality counts into a short summary.
func formatCounts(counts map[model.Severity]int) string {
	var parts []string
	for _, sev := range model.Severities() {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%c:%d", sev.String()[0], n))
		}
	}
	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison compares the latest session with the previous one or withID.
func runComparison(ctx context.Context, db *database.HistoryDB, out io.Writer, target, withID string, markdownOutput bool) error {
	var (
		result *database.Comparison
		err    error
	)
	if withID != "" {
		latest, lerr := db.LatestSessions(ctx, target, 1)
		if lerr != nil {
			return fmt.Errorf("failed to get scan history: %w", lerr)
		}
		if len(latest) == 0 {
			return fmt.Errorf("no scan history found for %s", target)
		}
		result, err = db.Compare(ctx, withID, latest[0].ID)
	} else {
		result, err = db.CompareLatest(ctx, target)
	}
	if err != nil {
		return err
	}

	if markdownOutput {
		return outputComparisonMarkdown(out, result)
	}
	outputComparisonText(out, result)
	return nil
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *database.Comparison) {
	fmt.Fprintf(out, "Scan Comparison: %s\n", result.Target)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nRisk Status: %s\n", formatRiskDirection(result.Direction))

	fmt.Fprintf(out, "\nPrevious scan: %s (%s)\n", result.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Previous.ID)
	fmt.Fprintf(out, "Current scan:  %s (%s)\n", result.Current.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Current.ID)

	fmt.Fprintln(out, "\nFindings Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	for _, sev := range model.Severities() {
		fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", sev.Label(),
			result.Previous.Counts[sev], result.Current.Counts[sev],
			formatDelta(result.Deltas[sev]))
	}
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Total",
		result.Previous.Total(), result.Current.Total(),
		formatDelta(result.Current.Total()-result.Previous.Total()))

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(out, "  [+] %s\n", describeFinding(f))
		}
	}

	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(out, "  [-] %s\n", describeFinding(f))
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *database.Comparison) error {
	md := markdown.NewMarkdown(out)
	md.H1f("Scan Comparison: %s", result.Target)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("%s %s", markdown.Bold("Risk Status:"), formatRiskDirection(result.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		result.Previous.StartedAt.Local().Format("2006-01-02 15:04"),
		result.Current.StartedAt.Local().Format("2006-01-02 15:04"),
		"-",
	}}
	for _, sev := range model.Severities() {
		rows = append(rows, []string{
			sev.Label(),
			strconv.Itoa(result.Previous.Counts[sev]),
			strconv.Itoa(result.Current.Counts[sev]),
			formatDelta(result.Deltas[sev]),
		})
	}
	rows = append(rows, []string{
		markdown.Bold("Total"),
		markdown.Bold(strconv.Itoa(result.Previous.Total())),
		markdown.Bold(strconv.Itoa(result.Current.Total())),
		markdown.Bold(formatDelta(result.Current.Total() - result.Previous.Total())),
	})
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})

	if len(result.NewFindings) > 0 {
		md.PlainText("")
		md.H2f("New Findings (%d)", len(result.NewFindings))
		md.PlainText("")
		items := make([]string, len(result.NewFindings))
		for i, f := range result.NewFindings {
			items[i] = describeFinding(f)
		}
		md.BulletList(items...)
	}

	if len(result.ResolvedFindings) > 0 {
		md.PlainText("")
		md.H2f("Resolved Findings (%d)", len(result.ResolvedFindings))
		md.PlainText("")
		items := make([]string, len(result.ResolvedFindings))
		for i, f := range result.ResolvedFindings {
			items[i] = markdown.Strikethrough(describeFinding(f))
		}
		md.BulletList(items...)
	}

	if result.UnchangedCount > 0 {
		md.PlainText("")
		md.HorizontalRule()
		md.PlainText("")
		md.PlainText(markdown.Italic(fmt.Sprintf("%d findings unchanged", result.UnchangedCount)))
	}

	return md.Build()
}

// describeFinding renders a one-line summary of a finding.
func describeFinding(f model.Finding) string {
	v := f.Vulnerability()
	where := f.Target()
	switch d := f.(type) {
	case *model.SQLInjectionFinding:
		where += " parameter " + strconv.Quote(d.Parameter)
	case *model.XSSFinding:
		where += " parameter " + strconv.Quote(d.Parameter)
	case *model.MissingCSRFTokenFinding:
		where += " form " + d.FormIdentifier
	}
	return fmt.Sprintf("[%s] %s (%s): %s", v.Criticality.Label(), v.Name, v.CWE, where)
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case database.RiskImproved:
		return "IMPROVED (risk decreased)"
	case database.RiskWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
