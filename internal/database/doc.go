// Package database provides SQLite-based scan history for SecScan.
//
// HistoryDB stores every finished scan session together with its findings,
// so that later runs can list past sessions of a target and compare two of
// them. Findings are stored in typed columns and rebuilt into their
// concrete model types on load.
//
// The database is a single file (secscan.db) opened through the CGO-free
// modernc.org/sqlite driver, with WAL enabled by default.
package database
