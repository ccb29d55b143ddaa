package detector

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/secscan/internal/fetch"
	"github.com/nao1215/secscan/internal/model"
)

// Detector runs the payload-based checks against one fetcher.
// A Detector holds no per-scan state and is safe for concurrent use.
type Detector struct {
	// fetcher retrieves every candidate URL.
	fetcher fetch.PageFetcher

	// concurrency is the number of payloads of one parameter fetched at once.
	// 1 means strictly sequential.
	concurrency int

	// logger is used for debug output about each probe.
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithConcurrency sets how many payloads of a parameter are fetched in
// parallel. The reported match is still the first in payload order.
func WithConcurrency(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// New creates a Detector that fetches through fetcher.
func New(fetcher fetch.PageFetcher, opts ...Option) *Detector {
	d := &Detector{
		fetcher:     fetcher,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// matchFunc inspects a response body fetched for payload and returns the
// evidence when the response proves the vulnerability.
type matchFunc func(body, payload string) (string, bool)

// probe mutates each parameter with each payload, in that order, and
// returns the first combination whose response satisfies match.
// Failed fetches and empty bodies count as non-matches.
func (d *Detector) probe(ctx context.Context, check, target string, params model.Params, payloads []string, match matchFunc) (model.InjectionDetail, bool) {
	if len(params) == 0 || len(payloads) == 0 {
		return model.InjectionDetail{}, false
	}
	base, err := url.Parse(target)
	if err != nil {
		d.logger.Debug("cannot parse target URL", "check", check, "url", target, "error", err)
		return model.InjectionDetail{}, false
	}

	for _, param := range params {
		if ctx.Err() != nil {
			return model.InjectionDetail{}, false
		}
		var (
			hit model.InjectionDetail
			ok  bool
		)
		if d.concurrency <= 1 {
			hit, ok = d.probeSequential(ctx, check, base, params, param.Name, payloads, match)
		} else {
			hit, ok = d.probeParallel(ctx, check, base, params, param.Name, payloads, match)
		}
		if ok {
			return hit, true
		}
	}
	return model.InjectionDetail{}, false
}

// probeSequential tries payloads one at a time and stops at the first match.
func (d *Detector) probeSequential(ctx context.Context, check string, base *url.URL, params model.Params, name string, payloads []string, match matchFunc) (model.InjectionDetail, bool) {
	for _, payload := range payloads {
		if ctx.Err() != nil {
			return model.InjectionDetail{}, false
		}
		if hit, ok := d.try(ctx, check, base, params, name, payload, match); ok {
			return hit, true
		}
	}
	return model.InjectionDetail{}, false
}

// probeParallel tries up to d.concurrency payloads at once. Payloads after
// the best match found so far are skipped, and the lowest matching index
// is returned.
func (d *Detector) probeParallel(ctx context.Context, check string, base *url.URL, params model.Params, name string, payloads []string, match matchFunc) (model.InjectionDetail, bool) {
	hits := make([]*model.InjectionDetail, len(payloads))
	var best atomic.Int64
	best.Store(int64(len(payloads)))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, payload := range payloads {
		g.Go(func() error {
			if ctx.Err() != nil || int64(i) > best.Load() {
				return nil
			}
			hit, ok := d.try(ctx, check, base, params, name, payload, match)
			if !ok {
				return nil
			}
			hits[i] = &hit
			for {
				cur := best.Load()
				if int64(i) >= cur || best.CompareAndSwap(cur, int64(i)) {
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // probes never return errors

	for _, hit := range hits {
		if hit != nil {
			return *hit, true
		}
	}
	return model.InjectionDetail{}, false
}

// try fetches one candidate URL and applies match to the response.
func (d *Detector) try(ctx context.Context, check string, base *url.URL, params model.Params, name, payload string, match matchFunc) (model.InjectionDetail, bool) {
	candidate := candidateURL(base, params, name, payload)

	res, err := d.fetcher.Fetch(ctx, candidate)
	if err != nil {
		d.logger.Debug("probe fetch failed",
			"check", check,
			"parameter", name,
			"url", candidate,
			"error", err,
		)
		return model.InjectionDetail{}, false
	}
	if res == nil || res.Body == "" {
		return model.InjectionDetail{}, false
	}

	evidence, ok := match(res.Body, payload)
	if !ok {
		return model.InjectionDetail{}, false
	}
	return model.InjectionDetail{
		Parameter:    name,
		Payload:      payload,
		CandidateURL: candidate,
		Evidence:     evidence,
	}, true
}

// candidateURL builds the URL that carries payload in the named parameter.
// Scheme, host, path and fragment come from base; the query is re-encoded
// from params in order.
func candidateURL(base *url.URL, params model.Params, name, payload string) string {
	u := *base
	u.RawQuery = params.WithSuffix(name, payload).Encode()
	u.ForceQuery = false
	return u.String()
}
