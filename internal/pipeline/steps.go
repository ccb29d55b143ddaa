package pipeline

import (
	"context"
	"errors"

	"github.com/nao1215/secscan/internal/crawler"
	"github.com/nao1215/secscan/internal/detector"
	"github.com/nao1215/secscan/internal/fetch"
)

// Step names, also used in logs.
const (
	StepFetch   = "fetch"
	StepExtract = "extract"
	StepSQLi    = "sqli"
	StepXSS     = "xss"
	StepCSRF    = "csrf"
)

// ErrNotExtracted is returned by detector steps that run before the
// extract step.
var ErrNotExtracted = errors.New("page has not been extracted")

// FetchStep retrieves the page body. A fetch failure ends the page.
type FetchStep struct {
	fetcher fetch.PageFetcher
}

// NewFetchStep creates a fetch step using fetcher.
func NewFetchStep(fetcher fetch.PageFetcher) *FetchStep {
	return &FetchStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return StepFetch }

// Do fetches page.URL. The returned error is the fetcher's, so callers can
// categorize it with fetch.AsFailure.
func (s *FetchStep) Do(ctx context.Context, page *Page) error {
	res, err := s.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return err
	}
	page.StatusCode = res.StatusCode
	page.Body = res.Body
	return nil
}

// ExtractStep builds the structural view of the fetched body.
type ExtractStep struct{}

// NewExtractStep creates an extract step.
func NewExtractStep() *ExtractStep {
	return &ExtractStep{}
}

// Name returns the step name.
func (s *ExtractStep) Name() string { return StepExtract }

// Do extracts links, forms and URL parameters.
func (s *ExtractStep) Do(_ context.Context, page *Page) error {
	page.Parsed = crawler.Extract(page.URL, page.Body)
	return nil
}

// SQLiStep runs the SQL injection check on the page's URL parameters.
// Pages without parameters are skipped.
type SQLiStep struct {
	detector *detector.Detector
}

// NewSQLiStep creates a SQL injection step.
func NewSQLiStep(d *detector.Detector) *SQLiStep {
	return &SQLiStep{detector: d}
}

// Name returns the step name.
func (s *SQLiStep) Name() string { return StepSQLi }

// Do runs the check and records a finding if one is returned.
// A check cut short by cancellation returns the context error.
func (s *SQLiStep) Do(ctx context.Context, page *Page) error {
	if page.Parsed == nil {
		return ErrNotExtracted
	}
	if len(page.Parsed.URLParams) == 0 {
		return nil
	}
	f := s.detector.CheckSQLi(ctx, page.URL, page.Parsed.URLParams)
	if f == nil {
		return ctx.Err()
	}
	page.Findings = append(page.Findings, f)
	return nil
}

// XSSStep runs the reflected XSS check on the page's URL parameters.
// Pages without parameters are skipped.
type XSSStep struct {
	detector *detector.Detector
}

// NewXSSStep creates an XSS step.
func NewXSSStep(d *detector.Detector) *XSSStep {
	return &XSSStep{detector: d}
}

// Name returns the step name.
func (s *XSSStep) Name() string { return StepXSS }

// Do runs the check and records a finding if one is returned.
// A check cut short by cancellation returns the context error.
func (s *XSSStep) Do(ctx context.Context, page *Page) error {
	if page.Parsed == nil {
		return ErrNotExtracted
	}
	if len(page.Parsed.URLParams) == 0 {
		return nil
	}
	f := s.detector.CheckXSS(ctx, page.URL, page.Parsed.URLParams)
	if f == nil {
		return ctx.Err()
	}
	page.Findings = append(page.Findings, f)
	return nil
}

// CSRFStep checks the page's forms for anti-CSRF tokens.
// It works on the raw body and needs no extraction.
type CSRFStep struct{}

// NewCSRFStep creates a CSRF step.
func NewCSRFStep() *CSRFStep {
	return &CSRFStep{}
}

// Name returns the step name.
func (s *CSRFStep) Name() string { return StepCSRF }

// Do records one finding per unprotected form.
func (s *CSRFStep) Do(_ context.Context, page *Page) error {
	for _, f := range detector.CheckCSRFForms(page.URL, page.Body) {
		page.Findings = append(page.Findings, f)
	}
	return nil
}

// NewPageScanPipeline assembles the standard per-page pipeline:
// fetch, extract, SQL injection, XSS, CSRF.
// The pipeline stops when the fetch fails.
func NewPageScanPipeline(fetcher fetch.PageFetcher, d *detector.Detector, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewFetchStep(fetcher),
		NewExtractStep(),
		NewSQLiStep(d),
		NewXSSStep(d),
		NewCSRFStep(),
	)
	return p
}
