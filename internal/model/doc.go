// Package model defines the core data structures shared by the scanner.
//
// This package contains the following main types:
//   - Vulnerability: an immutable catalog entry (name, CWE, criticality)
//   - Finding: a detected vulnerability instance, one concrete type per detector
//   - ParsedPage, Form and Params: the structural view of a fetched page
//   - PageResult and ScanReport: the outcome of a scan session
//
// Models live in their own package because the crawler, detector, scanner,
// report and database packages all depend on them.
package model
