package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/secscan/internal/crawler"
	"github.com/nao1215/secscan/internal/fetch"
	"github.com/nao1215/secscan/internal/model"
	"github.com/nao1215/secscan/internal/pipeline"
)

// Session is one scan run. It remembers which URLs it has processed and
// collects their results into a report.
// ScanPage may be called from several goroutines.
type Session struct {
	scanner  *Scanner
	logger   *slog.Logger
	visited  *crawler.VisitedSet
	pipeline *pipeline.Pipeline

	mu       sync.Mutex
	report   *model.ScanReport
	finished bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.report.SessionID
}

// Visited reports whether pageURL was already processed in this session.
func (s *Session) Visited(pageURL string) bool {
	return s.visited.IsVisited(pageURL)
}

// ScanPage processes one URL: fetch, extract, SQL injection and XSS checks
// when the URL has query parameters, then the CSRF check.
//
// A URL already visited in this session is skipped without any request.
// A failed fetch marks the page failed and no detector runs. Neither case
// is an error; the outcome is in the returned result, whose Links are the
// page's discovered links.
func (s *Session) ScanPage(ctx context.Context, pageURL string) model.PageResult {
	if !s.visited.MarkVisited(pageURL) {
		s.logger.Debug("page already visited", "url", pageURL)
		return s.record(model.PageResult{URL: pageURL, State: model.PageStateSkipped})
	}

	s.logger.Info("scanning page", "url", pageURL)

	page := &pipeline.Page{URL: pageURL}
	err := s.pipeline.Execute(ctx, page)

	result := model.PageResult{
		URL:        pageURL,
		StatusCode: page.StatusCode,
		Page:       page.Parsed,
		Findings:   page.Findings,
	}

	switch {
	case err != nil && page.Parsed == nil:
		result.State = model.PageStateFailed
		result.FailureReason = failureReason(err)
		result.StatusCode = fetch.AsFailure(err).StatusCode
		s.logger.Warn("page fetch failed",
			"url", pageURL,
			"reason", result.FailureReason,
			"error", err,
		)
	case err != nil:
		// Cancelled after extraction. The detectors that ran are kept.
		result.State = model.PageStateScanned
		result.Interrupted = true
		s.logger.Warn("page scan interrupted",
			"url", pageURL,
			"completed_steps", page.Performed,
			"error", err,
		)
	default:
		result.State = model.PageStateScanned
		s.logger.Info("page scanned",
			"url", pageURL,
			"links", len(page.Parsed.Links),
			"forms", len(page.Parsed.Forms),
			"params", len(page.Parsed.URLParams),
			"findings", len(page.Findings),
		)
	}

	for _, f := range result.Findings {
		s.logger.Info("vulnerability found",
			"url", pageURL,
			"type", f.Vulnerability().Name,
			"criticality", f.Vulnerability().Criticality.String(),
		)
	}

	return s.record(result)
}

// record adds result to the report and notifies the recorder.
func (s *Session) record(result model.PageResult) model.PageResult {
	s.mu.Lock()
	s.report.AddPage(result)
	s.mu.Unlock()

	s.scanner.recorder.RecordPage(result.State)
	for _, f := range result.Findings {
		s.scanner.recorder.RecordFinding(f)
	}
	return result
}

// Findings returns the findings collected so far, in detection order.
func (s *Session) Findings() []model.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Finding(nil), s.report.Findings...)
}

// Finish stamps the finish time and returns the session report.
// Calling it again returns the same report.
func (s *Session) Finish() *model.ScanReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.report.FinishedAt = time.Now()
		s.finished = true
	}
	return s.report
}

// failureReason names the failure category of a pipeline error.
// Cancellation before the fetch completed is reported as "cancelled".
func failureReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return fetch.AsFailure(err).Kind.String()
}
