// Package crawler turns fetched HTML into the structures the detectors use.
//
// Extract is a pure function over a page URL and its body. It returns the
// page's absolute links, its forms with placeholder inputs and the query
// parameters of the page URL. ParseForms exposes the raw <form> blocks,
// attributes as written plus their source markup, for detectors that need
// to quote the page.
//
// Parsing uses the golang.org/x/net/html tokenizer, which tolerates
// unquoted attributes, mixed-case tags and unclosed elements.
//
// VisitedSet tracks which URLs a scan session has already processed.
package crawler
