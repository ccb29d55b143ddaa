package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/secscan/internal/crawler"
	"github.com/nao1215/secscan/internal/detector"
	"github.com/nao1215/secscan/internal/fetch"
	"github.com/nao1215/secscan/internal/model"
	"github.com/nao1215/secscan/internal/pipeline"
)

// Recorder receives page and finding events. metrics.Recorder implements it.
type Recorder interface {
	// RecordPage is called once for every page with its terminal state.
	RecordPage(state model.PageState)

	// RecordFinding is called once for every reported finding.
	RecordFinding(f model.Finding)
}

// nopRecorder discards all events.
type nopRecorder struct{}

func (nopRecorder) RecordPage(model.PageState) {}
func (nopRecorder) RecordFinding(model.Finding) {}

// Scanner creates scan sessions that share one fetcher and detector.
// It holds no per-session state and is safe for concurrent use.
type Scanner struct {
	fetcher            fetch.PageFetcher
	detector           *detector.Detector
	logger             *slog.Logger
	recorder           Recorder
	payloadConcurrency int
	batchConcurrency   int
	newSessionID       func() string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithRecorder sets the receiver of page and finding events.
func WithRecorder(r Recorder) Option {
	return func(s *Scanner) {
		s.recorder = r
	}
}

// WithPayloadConcurrency sets how many payloads of one parameter are
// fetched at once. The default of 1 sends probes strictly in sequence.
func WithPayloadConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.payloadConcurrency = n
		}
	}
}

// WithBatchConcurrency sets how many seeds ScanBatch scans at once.
func WithBatchConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// withSessionIDs replaces the session ID generator. Used by tests.
func withSessionIDs(f func() string) Option {
	return func(s *Scanner) {
		s.newSessionID = f
	}
}

// New creates a Scanner that fetches every page and probe through fetcher.
func New(fetcher fetch.PageFetcher, opts ...Option) *Scanner {
	s := &Scanner{
		fetcher:            fetcher,
		payloadConcurrency: 1,
		batchConcurrency:   pipeline.DefaultBatchConcurrency,
		newSessionID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	s.detector = detector.New(fetcher,
		detector.WithConcurrency(s.payloadConcurrency),
		detector.WithLogger(s.logger),
	)
	return s
}

// NewSession starts an empty session for target.
func (s *Scanner) NewSession(target string) *Session {
	id := s.newSessionID()
	logger := s.logger.With("scan_id", id)
	return &Session{
		scanner:  s,
		logger:   logger,
		visited:  crawler.NewVisitedSet(),
		pipeline: pipeline.NewPageScanPipeline(s.fetcher, s.detector, pipeline.WithLogger(logger)),
		report:   model.NewScanReport(id, target),
	}
}

// Scan runs a session for seed and returns its report.
// Only the seed page is scanned. The report is complete even when the seed
// could not be fetched; its only page is then in the failed state.
func (s *Scanner) Scan(ctx context.Context, seed string) *model.ScanReport {
	session := s.NewSession(seed)
	session.logger.Info("starting scan", "target", seed)

	result := session.ScanPage(ctx, seed)
	report := session.Finish()

	session.logger.Info("scan finished",
		"target", seed,
		"state", result.State.String(),
		"findings", len(report.Findings),
		"elapsed", report.Duration().Round(time.Millisecond),
	)
	return report
}

// ScanBatch scans every seed in its own session and returns the reports in
// input order. Seeds not started before ctx is cancelled have a nil report.
func (s *Scanner) ScanBatch(ctx context.Context, seeds []string) ([]*model.ScanReport, error) {
	return s.batchProcessor().ProcessBatch(ctx, seeds)
}

// ScanBatchWithCallback scans like ScanBatch but hands each report to
// callback as soon as it completes. callback must be safe for concurrent use.
func (s *Scanner) ScanBatchWithCallback(ctx context.Context, seeds []string, callback func(report *model.ScanReport, index int)) error {
	return s.batchProcessor().ProcessBatchWithCallback(ctx, seeds, callback)
}

func (s *Scanner) batchProcessor() *pipeline.BatchProcessor {
	return pipeline.NewBatchProcessor(s.Scan,
		pipeline.WithConcurrency(s.batchConcurrency),
		pipeline.WithBatchLogger(s.logger),
	)
}
