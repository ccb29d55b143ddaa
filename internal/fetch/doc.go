// Package fetch retrieves page content for the scanner.
//
// Every detector and the scan orchestrator receive a PageFetcher. The
// production implementation, HTTPFetcher, issues exactly one GET per URL
// with a fixed timeout and reports transport problems as *Failure values
// categorized by FailureKind:
//
//   - FailureHTTPStatus: the server answered with status 400 or above
//   - FailureConnection: DNS, refused, reset or TLS problems
//   - FailureTimeout: the timeout elapsed
//   - FailureOther: anything else
//
// Callers that only care whether content was obtained treat every failure
// as "no content". Response bodies are decoded to UTF-8 with
// golang.org/x/net/html/charset. Requests can optionally be routed through
// an HTTP or SOCKS5 proxy (golang.org/x/net/proxy).
package fetch
