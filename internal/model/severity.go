package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity represents the criticality of a vulnerability.
// Values are ordered so that comparisons and sorting follow risk.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct security impact.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues with limited impact.
	SeverityLow

	// SeverityMedium indicates issues that require user interaction or
	// additional conditions to be exploited, such as a form without an
	// anti-CSRF token.
	SeverityMedium

	// SeverityHigh indicates issues that let an attacker read or modify data
	// or run script in a victim's browser, such as SQL injection or XSS.
	SeverityHigh

	// SeverityCritical indicates issues that lead to full compromise.
	SeverityCritical
)

// String returns the upper-case representation used in logs and storage.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Label returns the human-facing form of the severity ("High", "Medium").
// This is the spelling printed in scan reports.
func (s Severity) Label() string {
	// A Caser is stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.ToLower(s.String()))
}

// ParseSeverity converts a string (case-insensitive) back to a Severity.
// Unknown values map to SeverityInfo.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return SeverityLow
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Severities returns all levels from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
}
