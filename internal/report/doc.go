// Package report renders scan results.
//
// FormatFinding and WriteScanReport produce the plain-text report printed
// after every scan. Field labels, separators and blank lines are part of
// the output contract.
//
// TextWriter and MarkdownWriter implement Writer over a whole
// model.ScanReport. The Markdown form adds a summary table, a severity
// chart and one section per finding, and is meant for sharing.
package report
