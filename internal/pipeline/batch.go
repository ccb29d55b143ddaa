package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/secscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of seeds scanned at once when
// WithConcurrency is not given.
const DefaultBatchConcurrency = 4

// ScanFunc scans a single seed URL and returns its report.
// It must always return a non-nil report.
type ScanFunc func(ctx context.Context, seed string) *model.ScanReport

// BatchProcessor scans several seed URLs concurrently.
// Each seed gets its own call to the scan function, so sessions never share
// visited state.
type BatchProcessor struct {
	scan        ScanFunc
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of seeds scanned at once.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that runs scan for every seed.
func NewBatchProcessor(scan ScanFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		scan:        scan,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch scans all seeds and returns their reports in input order.
// Seeds not started before ctx is cancelled have a nil entry, and the
// context error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.ScanReport, error) {
	results := make([]*model.ScanReport, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(report *model.ScanReport, index int) {
		// Each index is written by exactly one goroutine.
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback scans all seeds and calls callback as each
// report completes. The callback runs on the scanning goroutine and must be
// safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch scan",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("scanning seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			report := bp.scan(ctx, seed)
			callback(report, i)

			bp.logger.Info("seed completed",
				"seed", seed,
				"findings", len(report.Findings),
			)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch scan complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return err
}
