// Package fetcher retrieves feed payloads over HTTP, first directly and then
// through a CORS relay, unwrapping whichever envelope the relay returns.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/church-web/sermon-feed-go/internal/metrics"
	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

// DefaultMaxBodyBytes caps response bodies when Options leaves it unset.
const DefaultMaxBodyBytes int64 = 5 << 20

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher.
type Options struct {
	// RelayURL is the relay endpoint, e.g. https://api.allorigins.win/get.
	// Empty disables the relay.
	RelayURL     string
	UserAgent    string
	MaxBodyBytes int64
	// Timeout applies only when the Fetcher builds its own client.
	Timeout time.Duration
	// MinInterval spaces outbound requests, relay hops included. Zero means unpaced.
	MinInterval time.Duration
}

// Request describes one payload to retrieve.
type Request struct {
	URL    string
	Accept string
	// SkipRelay forbids the relay, e.g. for URLs carrying credentials.
	SkipRelay bool
}

// Result is a successfully retrieved payload.
type Result struct {
	Body        []byte
	Path        models.FetchPath
	URL         string
	ContentType string
	StatusCode  int
}

// Fetcher performs the direct-then-relay retrieval.
type Fetcher struct {
	client   HTTPClient
	opts     Options
	relayURL *url.URL
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
}

// New creates a Fetcher. A nil client gets an http.Client with opts.Timeout.
func New(client HTTPClient, opts Options, m *metrics.Metrics) (*Fetcher, error) {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	f := &Fetcher{client: client, opts: opts, metrics: m, limiter: rate.NewLimiter(limit, 1)}

	if opts.RelayURL != "" {
		u, err := url.Parse(opts.RelayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid relay url %q", opts.RelayURL)
		}
		f.relayURL = u
	}

	return f, nil
}

// Fetch retrieves req.URL. On success the body is the origin payload with any
// relay envelope removed. When both paths fail the error is a *TransportError.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	res, directErr := f.direct(ctx, req)
	f.metrics.FetchAttempt(string(models.PathDirect), directErr == nil)
	if directErr == nil {
		return res, nil
	}

	log := logger.L().With(zap.String("url", redact(req.URL)))
	log.Warn("Direct fetch failed", zap.Error(directErr))

	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Target: redact(req.URL), Direct: directErr, Relay: err}
	}

	if req.SkipRelay || f.relayURL == nil {
		return nil, &TransportError{Target: redact(req.URL), Direct: directErr, Relay: ErrRelayDisabled}
	}

	res, relayErr := f.relay(ctx, req)
	f.metrics.FetchAttempt(string(models.PathRelay), relayErr == nil)
	if relayErr != nil {
		log.Warn("Relay fetch failed", zap.Error(relayErr))
		return nil, &TransportError{Target: redact(req.URL), Direct: directErr, Relay: relayErr}
	}

	log.Info("Fetched through relay", zap.Int("bytes", len(res.Body)))
	return res, nil
}

func (f *Fetcher) direct(ctx context.Context, req Request) (*Result, error) {
	status, header, body, err := f.get(ctx, req.URL, req.Accept)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{URL: redact(req.URL), StatusCode: status, Body: body}
	}

	return &Result{
		Body:        body,
		Path:        models.PathDirect,
		URL:         req.URL,
		ContentType: header.Get("Content-Type"),
		StatusCode:  status,
	}, nil
}

func (f *Fetcher) relay(ctx context.Context, req Request) (*Result, error) {
	relayed := f.relayTarget(req.URL)

	status, header, body, err := f.get(ctx, relayed, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{URL: redact(req.URL), StatusCode: status, Relay: true, Body: body}
	}

	u, err := unwrapRelay(body)
	if err != nil {
		return nil, err
	}

	if u.statusCode != 0 && (u.statusCode < 200 || u.statusCode > 299) {
		return nil, &StatusError{URL: redact(req.URL), StatusCode: u.statusCode, Relay: true, Body: u.body}
	}

	contentType := u.contentType
	if !u.enveloped {
		contentType = header.Get("Content-Type")
	}
	if u.statusCode != 0 {
		status = u.statusCode
	}

	return &Result{
		Body:        u.body,
		Path:        models.PathRelay,
		URL:         req.URL,
		ContentType: contentType,
		StatusCode:  status,
	}, nil
}

// relayTarget builds <relay>?url=<target>, keeping any query the relay URL already has.
func (f *Fetcher) relayTarget(target string) string {
	u := *f.relayURL
	q := u.Query()
	q.Set("url", target)
	u.RawQuery = q.Encode()
	return u.String()
}

func (f *Fetcher) get(ctx context.Context, rawURL, accept string) (int, http.Header, []byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("create request: %w", scrubURLError(err))
	}

	if f.opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", f.opts.UserAgent)
	}
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("send request: %w", scrubURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return 0, nil, nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.opts.MaxBodyBytes)
	}

	return resp.StatusCode, resp.Header, body, nil
}

// redact masks API keys so URLs can be logged or shown to callers. A relay
// URL carries its target in the url parameter, which is redacted as well.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if base, _, found := strings.Cut(raw, "?"); found {
			return base + "?REDACTED"
		}
		return raw
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		u.RawQuery = "REDACTED"
		return u.String()
	}
	changed := false
	if q.Get("key") != "" {
		q.Set("key", "REDACTED")
		changed = true
	}
	if inner := q.Get("url"); inner != "" {
		if masked := redact(inner); masked != inner {
			q.Set("url", masked)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// scrubURLError redacts the request URL net/http embeds in transport errors,
// which would otherwise carry the API key into warnings and logs.
func scrubURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redact(ue.URL)
	}
	return err
}

// IsTransportError reports whether err means every fetch path failed.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
