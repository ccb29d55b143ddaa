// Package scanner orchestrates scan sessions.
//
// A Session owns the visited set of one scan and runs every page through
// the per-page pipeline: fetch, extract, SQL injection and XSS checks when
// the URL has query parameters, then the CSRF form check. Pages end in one
// of three states: scanned, failed (the fetch produced no content, so no
// detector ran) or skipped (already visited in this session).
//
// Scanner is the entry point. Scan runs one session for a seed URL and
// returns its report; ScanBatch runs one independent session per seed with
// bounded concurrency. Discovered links are returned to the caller and are
// never followed.
package scanner
