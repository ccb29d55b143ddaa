// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The scanner logs every URL it probes. Those URLs are copies of the target's
// own links, so they may carry credentials or session tokens. SecureHandler
// masks them before they reach the output:
//   - attributes named like a secret (Cookie, Authorization, password, token)
//   - values that look like a secret (JWTs, Bearer and Basic credentials,
//     long API keys, private key blocks)
//   - the userinfo password and sensitive query parameters of URL values
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("scanning page", "url", "http://example.com/?id=1&token=abc")
//	// url=http://example.com/?id=1&token=***REDACTED***
//
//	slog.SetDefault(logger)
package log
