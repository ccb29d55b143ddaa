package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/secscan/internal/fetch"
	"github.com/nao1215/secscan/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSite serves a small vulnerable application from memory.
//
//	/index.html   links and a login form without a CSRF token
//	/page2.html   MySQL error when id carries a quote
//	/search       reflects q verbatim
//	/missing      404
type fakeSite struct {
	calls atomic.Int32
}

const indexPage = `<html><body>
<a href="/page2.html?id=10&amp;name=testuser">Item</a>
<a href="mailto:admin@example.com">Mail</a>
<form action="/login" method="post" id="loginForm">
  <input type="text" name="user"><input type="password" name="pass">
</form>
<form action="/comment" method="post">
  <input type="hidden" name="csrf_token" value="x"><input name="text">
</form>
</body></html>`

func (s *fakeSite) Fetch(_ context.Context, rawURL string) (*fetch.Result, error) {
	s.calls.Add(1)
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &fetch.Failure{Kind: fetch.FailureOther, URL: rawURL, Err: err}
	}
	q := u.Query()
	switch u.Path {
	case "/index.html":
		return &fetch.Result{URL: rawURL, StatusCode: 200, Body: indexPage}, nil
	case "/page2.html":
		body := "<html><body><p>Product details</p></body></html>"
		if strings.ContainsAny(q.Get("id"), "'\"") {
			body = "<html><body>You have an error in your SQL syntax; check the manual</body></html>"
		}
		return &fetch.Result{URL: rawURL, StatusCode: 200, Body: body}, nil
	case "/search":
		return &fetch.Result{URL: rawURL, StatusCode: 200, Body: "<p>Results for " + q.Get("q") + "</p>"}, nil
	default:
		return nil, &fetch.Failure{Kind: fetch.FailureHTTPStatus, URL: rawURL, StatusCode: 404}
	}
}

// countingRecorder counts recorder events.
type countingRecorder struct {
	mu       sync.Mutex
	pages    map[model.PageState]int
	findings map[model.VulnerabilityKind]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		pages:    make(map[model.PageState]int),
		findings: make(map[model.VulnerabilityKind]int),
	}
}

func (r *countingRecorder) RecordPage(state model.PageState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[state]++
}

func (r *countingRecorder) RecordFinding(f model.Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings[f.Vulnerability().Kind]++
}

// TestScan tests single-seed scanning.
func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("reports exactly one SQL injection on the id parameter", func(t *testing.T) {
		t.Parallel()

		s := New(&fakeSite{}, WithLogger(quietLogger()))
		report := s.Scan(context.Background(), "http://example.com/page2.html?id=10&name=testuser")

		if len(report.Findings) != 1 {
			t.Fatalf("expected 1 finding, got %d: %+v", len(report.Findings), report.Findings)
		}
		f, ok := report.Findings[0].(*model.SQLInjectionFinding)
		if !ok {
			t.Fatalf("expected SQL injection, got %T", report.Findings[0])
		}
		if f.Parameter != "id" {
			t.Errorf("Parameter = %q, expected id", f.Parameter)
		}
		if f.Payload != "'" {
			t.Errorf("Payload = %q, expected the first catalog payload", f.Payload)
		}
		if f.TargetURL != "http://example.com/page2.html?id=10&name=testuser" {
			t.Errorf("TargetURL = %q", f.TargetURL)
		}
		if !strings.Contains(f.CandidateURL, "name=testuser") {
			t.Errorf("other parameters must be kept: %q", f.CandidateURL)
		}
		if f.Vulnerability().CWE != "CWE-89" || f.Vulnerability().Criticality != model.SeverityHigh {
			t.Errorf("unexpected catalog entry: %+v", f.Vulnerability())
		}
	})

	t.Run("page with forms but no params only runs the CSRF check", func(t *testing.T) {
		t.Parallel()

		site := &fakeSite{}
		s := New(site, WithLogger(quietLogger()))
		report := s.Scan(context.Background(), "http://example.com/index.html")

		if site.calls.Load() != 1 {
			t.Errorf("expected only the page fetch, got %d requests", site.calls.Load())
		}
		if len(report.Findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(report.Findings))
		}
		f, ok := report.Findings[0].(*model.MissingCSRFTokenFinding)
		if !ok {
			t.Fatalf("expected CSRF finding, got %T", report.Findings[0])
		}
		if f.FormIdentifier != "action='/login', method='POST', id='loginForm'" {
			t.Errorf("FormIdentifier = %q", f.FormIdentifier)
		}

		if len(report.Pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(report.Pages))
		}
		page := report.Pages[0]
		if page.State != model.PageStateScanned || page.StatusCode != 200 {
			t.Errorf("unexpected page result: %+v", page)
		}
		links := page.Links()
		if len(links) != 1 || links[0] != "http://example.com/page2.html?id=10&name=testuser" {
			t.Errorf("unexpected links: %v", links)
		}
	})

	t.Run("findings are ordered sqli, xss, csrf", func(t *testing.T) {
		t.Parallel()

		body := func(q url.Values) string {
			v := q.Get("p")
			if strings.Contains(v, "'") {
				return "ORA-00933: SQL command not properly ended " + v
			}
			return `<form action="/f"><input name="a"></form>` + v
		}
		f := fetch.FetcherFunc(func(_ context.Context, rawURL string) (*fetch.Result, error) {
			u, _ := url.Parse(rawURL)
			return &fetch.Result{URL: rawURL, StatusCode: 200, Body: body(u.Query())}, nil
		})

		report := New(f, WithLogger(quietLogger())).Scan(context.Background(), "http://example.com/?p=1")
		if len(report.Findings) != 3 {
			t.Fatalf("expected 3 findings, got %d", len(report.Findings))
		}
		kinds := []model.VulnerabilityKind{model.KindSQLInjection, model.KindXSS, model.KindMissingCSRFToken}
		for i, k := range kinds {
			if got := report.Findings[i].Vulnerability().Kind; got != k {
				t.Errorf("finding %d: kind %v, expected %v", i, got, k)
			}
		}
	})

	t.Run("failed fetch marks the page failed and runs no detector", func(t *testing.T) {
		t.Parallel()

		site := &fakeSite{}
		rec := newCountingRecorder()
		s := New(site, WithLogger(quietLogger()), WithRecorder(rec))
		report := s.Scan(context.Background(), "http://example.com/missing?id=1")

		if site.calls.Load() != 1 {
			t.Errorf("expected a single request, got %d", site.calls.Load())
		}
		if len(report.Findings) != 0 {
			t.Errorf("expected no findings, got %d", len(report.Findings))
		}
		if !report.Failed() {
			t.Error("expected report to be failed")
		}
		page := report.Pages[0]
		if page.State != model.PageStateFailed {
			t.Errorf("State = %v", page.State)
		}
		if page.FailureReason != "http_status" || page.StatusCode != 404 {
			t.Errorf("unexpected failure: reason=%q status=%d", page.FailureReason, page.StatusCode)
		}
		if page.Page != nil || page.Links() != nil {
			t.Error("failed page must carry no structure")
		}
		if rec.pages[model.PageStateFailed] != 1 {
			t.Errorf("recorder pages = %v", rec.pages)
		}
	})

	t.Run("report carries session metadata", func(t *testing.T) {
		t.Parallel()

		s := New(&fakeSite{}, WithLogger(quietLogger()), withSessionIDs(func() string { return "fixed-id" }))
		report := s.Scan(context.Background(), "http://example.com/index.html")

		if report.SessionID != "fixed-id" {
			t.Errorf("SessionID = %q", report.SessionID)
		}
		if report.Target != "http://example.com/index.html" {
			t.Errorf("Target = %q", report.Target)
		}
		if report.FinishedAt.IsZero() || report.FinishedAt.Before(report.StartedAt) {
			t.Errorf("unexpected times: %v .. %v", report.StartedAt, report.FinishedAt)
		}
	})

	t.Run("default session IDs are unique", func(t *testing.T) {
		t.Parallel()

		s := New(&fakeSite{}, WithLogger(quietLogger()))
		a := s.NewSession("http://example.com/")
		b := s.NewSession("http://example.com/")
		if a.ID() == "" || a.ID() == b.ID() {
			t.Errorf("expected distinct IDs, got %q and %q", a.ID(), b.ID())
		}
	})

	t.Run("cancelled context fails the page", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		site := &fakeSite{}
		report := New(site, WithLogger(quietLogger())).Scan(ctx, "http://example.com/index.html")
		if site.calls.Load() != 0 {
			t.Errorf("expected no requests, got %d", site.calls.Load())
		}
		if report.Pages[0].State != model.PageStateFailed || report.Pages[0].FailureReason != "cancelled" {
			t.Errorf("unexpected page: %+v", report.Pages[0])
		}
	})
}

// cancelOnProbe serves a harmless page and cancels the scan as soon as a
// request other than the seed arrives.
type cancelOnProbe struct {
	seed   string
	cancel context.CancelFunc
}

func (c *cancelOnProbe) Fetch(_ context.Context, rawURL string) (*fetch.Result, error) {
	if rawURL != c.seed {
		c.cancel()
	}
	return &fetch.Result{URL: rawURL, StatusCode: 200, Body: "<html><body><p>ok</p></body></html>"}, nil
}

// TestScanInterruptedDuringChecks tests that a page whose checks were cut
// short is not reported as a clean scan.
func TestScanInterruptedDuringChecks(t *testing.T) {
	t.Parallel()

	const seed = "http://example.com/item?id=1"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site := &cancelOnProbe{seed: seed, cancel: cancel}
	report := New(site, WithLogger(quietLogger()), WithPayloadConcurrency(1)).Scan(ctx, seed)

	if len(report.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(report.Pages))
	}
	page := report.Pages[0]
	if page.State != model.PageStateScanned {
		t.Errorf("State = %v, want scanned", page.State)
	}
	if !page.Interrupted {
		t.Error("expected the page to be marked interrupted")
	}
	if len(page.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(page.Findings))
	}
}

// TestSessionScanPage tests visited tracking within a session.
func TestSessionScanPage(t *testing.T) {
	t.Parallel()

	t.Run("second visit is a no-op", func(t *testing.T) {
		t.Parallel()

		site := &fakeSite{}
		rec := newCountingRecorder()
		s := New(site, WithLogger(quietLogger()), WithRecorder(rec))
		session := s.NewSession("http://example.com/index.html")

		first := session.ScanPage(context.Background(), "http://example.com/index.html")
		calls := site.calls.Load()
		second := session.ScanPage(context.Background(), "http://example.com/index.html#top")

		if first.State != model.PageStateScanned {
			t.Errorf("first visit state = %v", first.State)
		}
		if second.State != model.PageStateSkipped {
			t.Errorf("second visit state = %v", second.State)
		}
		if site.calls.Load() != calls {
			t.Error("second visit must not fetch")
		}
		if len(second.Findings) != 0 || second.Links() != nil {
			t.Error("second visit must not report anything")
		}
		if got := len(session.Findings()); got != 1 {
			t.Errorf("expected findings of the first visit only, got %d", got)
		}
		if !session.Visited("http://EXAMPLE.com/index.html") {
			t.Error("expected normalized URL to be visited")
		}
		if rec.pages[model.PageStateScanned] != 1 || rec.pages[model.PageStateSkipped] != 1 {
			t.Errorf("recorder pages = %v", rec.pages)
		}
		if rec.findings[model.KindMissingCSRFToken] != 1 {
			t.Errorf("recorder findings = %v", rec.findings)
		}
	})

	t.Run("failed pages are not retried", func(t *testing.T) {
		t.Parallel()

		site := &fakeSite{}
		session := New(site, WithLogger(quietLogger())).NewSession("http://example.com/missing")
		session.ScanPage(context.Background(), "http://example.com/missing")
		res := session.ScanPage(context.Background(), "http://example.com/missing")
		if res.State != model.PageStateSkipped || site.calls.Load() != 1 {
			t.Errorf("expected skip without request, got %v after %d requests", res.State, site.calls.Load())
		}
	})

	t.Run("concurrent scans of the same URL fetch once", func(t *testing.T) {
		t.Parallel()

		site := &fakeSite{}
		session := New(site, WithLogger(quietLogger())).NewSession("http://example.com/index.html")

		var wg sync.WaitGroup
		var scanned atomic.Int32
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if session.ScanPage(context.Background(), "http://example.com/index.html").State == model.PageStateScanned {
					scanned.Add(1)
				}
			}()
		}
		wg.Wait()

		if scanned.Load() != 1 || site.calls.Load() != 1 {
			t.Errorf("expected one scan and one request, got %d scans and %d requests", scanned.Load(), site.calls.Load())
		}
		report := session.Finish()
		if len(report.Pages) != 16 {
			t.Errorf("expected 16 page results, got %d", len(report.Pages))
		}
		if again := session.Finish(); again.FinishedAt != report.FinishedAt {
			t.Error("Finish must be idempotent")
		}
	})
}

// TestScanBatch tests scanning several seeds.
func TestScanBatch(t *testing.T) {
	t.Parallel()

	seeds := []string{
		"http://example.com/page2.html?id=10&name=testuser",
		"http://example.com/index.html",
		"http://example.com/missing",
		"http://example.com/search?q=shoes",
	}

	rec := newCountingRecorder()
	s := New(&fakeSite{}, WithLogger(quietLogger()), WithRecorder(rec), WithBatchConcurrency(2), WithPayloadConcurrency(4))
	reports, err := s.ScanBatch(context.Background(), seeds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != len(seeds) {
		t.Fatalf("expected %d reports, got %d", len(seeds), len(reports))
	}

	expected := []model.VulnerabilityKind{model.KindSQLInjection, model.KindMissingCSRFToken, -1, model.KindXSS}
	ids := make(map[string]bool)
	for i, r := range reports {
		if r.Target != seeds[i] {
			t.Errorf("report %d: target %q, expected %q", i, r.Target, seeds[i])
		}
		ids[r.SessionID] = true
		if expected[i] < 0 {
			if len(r.Findings) != 0 {
				t.Errorf("report %d: expected no findings, got %d", i, len(r.Findings))
			}
			continue
		}
		if len(r.Findings) != 1 || r.Findings[0].Vulnerability().Kind != expected[i] {
			t.Errorf("report %d: unexpected findings %+v", i, r.Findings)
		}
	}
	if len(ids) != len(seeds) {
		t.Errorf("expected one session per seed, got %d distinct IDs", len(ids))
	}
	if rec.pages[model.PageStateScanned] != 3 || rec.pages[model.PageStateFailed] != 1 {
		t.Errorf("recorder pages = %v", rec.pages)
	}
}

// TestScanBatchWithCallback tests streaming batch results.
func TestScanBatchWithCallback(t *testing.T) {
	t.Parallel()

	seeds := []string{
		"http://example.com/index.html",
		"http://example.com/missing",
		"http://example.com/search?q=shoes",
	}
	s := New(&fakeSite{}, WithLogger(quietLogger()), WithBatchConcurrency(3))

	var mu sync.Mutex
	got := make(map[int]string)
	err := s.ScanBatchWithCallback(context.Background(), seeds, func(report *model.ScanReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		got[index] = report.Target
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(seeds) {
		t.Fatalf("expected %d callbacks, got %d", len(seeds), len(got))
	}
	for i, seed := range seeds {
		if got[i] != seed {
			t.Errorf("callback %d: target %q, expected %q", i, got[i], seed)
		}
	}
}

// TestScanOverHTTP runs a scan against a real HTTP server.
func TestScanOverHTTP(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		id := r.URL.Query().Get("id")
		if strings.Contains(id, "'") {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "Unclosed quotation mark after the character string")
			return
		}
		if strings.Contains(id, "\"") {
			fmt.Fprint(w, "Microsoft OLE DB Provider: [SQLServer] Incorrect syntax")
			return
		}
		fmt.Fprintf(w, `<html><body><h1>Product %s</h1>
<form method="post"><input name="qty"></form></body></html>`, id)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f, err := fetch.New(fetch.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report := New(f, WithLogger(quietLogger())).Scan(context.Background(), server.URL+"/product?id=5")

	if len(report.Findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(report.Findings))
	}
	sqli, ok := report.Findings[0].(*model.SQLInjectionFinding)
	if !ok {
		t.Fatalf("expected SQL injection first, got %T", report.Findings[0])
	}
	// The 500 answer to the quote is a failed fetch, so the double quote wins.
	if sqli.Payload != "\"" || sqli.Evidence != `Detected SQL error pattern: '\[SQLServer\]' in response.` {
		t.Errorf("unexpected finding: %+v", sqli)
	}
	if _, ok := report.Findings[1].(*model.XSSFinding); !ok {
		t.Errorf("expected XSS second, got %T", report.Findings[1])
	}
	csrf, ok := report.Findings[2].(*model.MissingCSRFTokenFinding)
	if !ok {
		t.Fatalf("expected CSRF third, got %T", report.Findings[2])
	}
	if csrf.FormIdentifier != "action='N/A', method='POST', id='N/A'" {
		t.Errorf("FormIdentifier = %q", csrf.FormIdentifier)
	}
}
