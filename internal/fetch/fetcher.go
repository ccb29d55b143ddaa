package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout is the per-request timeout. It bounds connection setup
	// and reading the response together.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5 MB
)

// Result is the content of a successful fetch.
type Result struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the response body decoded to UTF-8.
	Body string
}

// PageFetcher retrieves the content of a URL.
//
// Implementations must return either a non-nil *Result and nil error, or a
// nil *Result and an error that AsFailure can categorize. They never retry.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// FetcherFunc adapts an ordinary function to the PageFetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) (*Result, error)

// Fetch calls f(ctx, rawURL).
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	return f(ctx, rawURL)
}

// HTTPFetcher is the PageFetcher used for real scans: one plain GET per URL,
// no custom headers, no cookie jar and no retry.
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	proxyURL    string
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithProxy routes requests through a proxy. Supported schemes are
// http, https, socks5 and socks5h.
func WithProxy(proxyURL string) Option {
	return func(f *HTTPFetcher) {
		f.proxyURL = proxyURL
	}
}

// WithHTTPClient replaces the underlying client. The per-request timeout is
// still applied through the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// New creates an HTTPFetcher. It fails only when the proxy URL is invalid.
func New(opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		transport, err := newTransport(f.proxyURL, f.timeout)
		if err != nil {
			return nil, err
		}
		f.client = &http.Client{Transport: transport}
	}
	return f, nil
}

// newTransport builds the connection pool shared by all requests of a scan.
func newTransport(proxyURL string, timeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, ErrInvalidProxy
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, dialer)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, ErrInvalidProxy
		}
		transport.DialContext = cd.DialContext
	default:
		return nil, ErrInvalidProxy
	}
	return transport, nil
}

// Timeout returns the configured per-request timeout.
func (f *HTTPFetcher) Timeout() time.Duration {
	return f.timeout
}

// Fetch issues a single GET for rawURL.
//
// A status of 400 or above is a failure even though a response arrived.
// The body is decoded to UTF-8 using the declared or sniffed charset.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Failure{Kind: FailureOther, URL: rawURL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Failure{Kind: classify(ctx, err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &Failure{Kind: FailureHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := readBody(resp, f.maxBodySize)
	if err != nil {
		return nil, &Failure{Kind: classify(ctx, err), URL: rawURL, Err: err}
	}

	return &Result{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// readBody reads at most limit bytes and converts them to UTF-8.
func readBody(resp *http.Response, limit int64) (string, error) {
	r, err := charset.NewReader(io.LimitReader(resp.Body, limit), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// classify maps a transport error to a FailureKind.
func classify(ctx context.Context, err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureOther
	}

	var (
		opErr      *net.OpError
		dnsErr     *net.DNSError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		certErr    *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &opErr),
		errors.As(err, &dnsErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostErr),
		errors.As(err, &certErr),
		errors.As(err, &recordErr),
		errors.As(err, &invalidErr),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return FailureConnection
	}
	return FailureOther
}
