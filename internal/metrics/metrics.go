// Package metrics exposes scan activity as Prometheus metrics.
//
// A Recorder owns a private registry. It plugs into the scanner as a
// scanner.Recorder and wraps the page fetcher to time every request.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/secscan/internal/fetch"
	"github.com/nao1215/secscan/internal/model"
)

// DefaultPath is where Serve exposes the metrics.
const DefaultPath = "/metrics"

// outcomeOK labels successful fetches. Failed fetches use the failure kind name.
const outcomeOK = "ok"

// Recorder collects scan metrics.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	pagesTotal    *prometheus.CounterVec
	findingsTotal *prometheus.CounterVec
}

// NewRecorder creates a Recorder with a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secscan_fetch_total",
				Help: "Total number of page fetches by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secscan_fetch_duration_seconds",
				Help:    "Page fetch duration distribution in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"outcome"},
		),
		pagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secscan_pages_total",
				Help: "Total number of pages processed by final state",
			},
			[]string{"state"},
		),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secscan_findings_total",
				Help: "Total number of findings by vulnerability type and criticality",
			},
			[]string{"type", "criticality"},
		),
	}

	r.registry.MustRegister(
		r.fetchTotal,
		r.fetchDuration,
		r.pagesTotal,
		r.findingsTotal,
	)
	return r
}

// Registry returns the registry holding the scan metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordPage counts a processed page by its final state.
func (r *Recorder) RecordPage(state model.PageState) {
	r.pagesTotal.WithLabelValues(state.String()).Inc()
}

// RecordFinding counts a finding by type and criticality.
func (r *Recorder) RecordFinding(f model.Finding) {
	v := f.Vulnerability()
	r.findingsTotal.WithLabelValues(v.Kind.String(), strings.ToLower(v.Criticality.String())).Inc()
}

// recordFetch counts and times one fetch.
func (r *Recorder) recordFetch(elapsed time.Duration, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = fetch.AsFailure(err).Kind.String()
	}
	r.fetchTotal.WithLabelValues(outcome).Inc()
	r.fetchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// InstrumentFetcher wraps next so that every fetch is counted and timed.
func (r *Recorder) InstrumentFetcher(next fetch.PageFetcher) fetch.PageFetcher {
	return fetch.FetcherFunc(func(ctx context.Context, rawURL string) (*fetch.Result, error) {
		start := time.Now()
		result, err := next.Fetch(ctx, rawURL)
		r.recordFetch(time.Since(start), err)
		return result, err
	})
}

// Handler returns an HTTP handler serving the metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics on addr until ctx is cancelled.
// It returns nil after a clean shutdown.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(DefaultPath, r.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr, "path", DefaultPath)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return nil
	}
}
