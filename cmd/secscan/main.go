// Package main provides the entry point for the SecScan CLI.
//
// SecScan is a web vulnerability scanner. It fetches a seed page, extracts
// its links, forms and query parameters, and probes them for error-based
// SQL injection, reflected XSS and missing anti-CSRF tokens.
//
// Usage:
//
//	secscan scan <url> [url...]
//	secscan history <url>
//
// See --help for all available options.
package main

// main is the entry point for SecScan.
func main() {
	Execute()
}
