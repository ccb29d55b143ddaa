// Package detector implements the vulnerability checks run on every page.
//
// Three independent checks are provided:
//   - CheckSQLi: appends quote, comment and tautology payloads to each query
//     parameter and looks for database error messages in the response
//   - CheckXSS: appends script and event-handler payloads to each query
//     parameter and looks for a verbatim reflection
//   - CheckCSRFForms: inspects the page's forms for an anti-CSRF token field
//
// The injection checks are methods of Detector, which owns the
// fetch.PageFetcher used for every probe. They try parameters in query
// order and payloads in catalog order and stop at the first match, so the
// same page always yields the same finding. WithConcurrency lets several
// payloads of one parameter be fetched at once without changing which
// match is reported.
//
// CheckCSRFForms needs no network access and is a plain function.
package detector
