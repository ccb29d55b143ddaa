package model

import "time"

// ScanReport is the result of one scan session.
// It is created by the scanner, rendered by the report package and stored
// by the database package.
type ScanReport struct {
	// SessionID uniquely identifies the session.
	SessionID string

	// Target is the seed URL of the session.
	Target string

	// StartedAt and FinishedAt bound the session.
	StartedAt  time.Time
	FinishedAt time.Time

	// Pages lists every page the session touched, in processing order.
	Pages []PageResult

	// Findings aggregates the findings of all pages, in detection order.
	Findings []Finding
}

// NewScanReport creates an empty report for target.
func NewScanReport(sessionID, target string) *ScanReport {
	return &ScanReport{
		SessionID: sessionID,
		Target:    target,
		StartedAt: time.Now(),
	}
}

// AddPage records a page result and appends its findings to the report.
func (r *ScanReport) AddPage(p PageResult) {
	r.Pages = append(r.Pages, p)
	r.Findings = append(r.Findings, p.Findings...)
}

// HasFindings reports whether any vulnerability was found.
func (r *ScanReport) HasFindings() bool {
	return len(r.Findings) > 0
}

// CountBySeverity returns the number of findings per criticality.
func (r *ScanReport) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range r.Findings {
		counts[f.Vulnerability().Criticality]++
	}
	return counts
}

// CountByKind returns the number of findings per vulnerability kind.
func (r *ScanReport) CountByKind() map[VulnerabilityKind]int {
	counts := make(map[VulnerabilityKind]int)
	for _, f := range r.Findings {
		counts[f.Vulnerability().Kind]++
	}
	return counts
}

// Failed reports whether the seed page could not be fetched.
func (r *ScanReport) Failed() bool {
	return len(r.Pages) > 0 && r.Pages[0].State == PageStateFailed
}

// Interrupted reports whether the seed page's checks were cut short.
func (r *ScanReport) Interrupted() bool {
	return len(r.Pages) > 0 && r.Pages[0].Interrupted
}

// Duration returns how long the session ran.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
