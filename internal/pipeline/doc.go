// Package pipeline runs the per-page scan steps in sequence.
//
// A page moves through fetch, extract, SQL injection, XSS and CSRF steps.
// Each step receives the Page built so far and adds to it: the body, the
// parsed structure, findings. The fetch step is the only one that fails in
// normal operation, and a failed fetch ends the page.
//
// BatchProcessor runs whole scan sessions for several seed URLs
// concurrently, bounded by errgroup.SetLimit.
package pipeline
