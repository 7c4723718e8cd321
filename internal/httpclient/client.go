package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Taichi-iskw/ingest/internal/errors"
	"github.com/Taichi-iskw/ingest/internal/metrics"
	"github.com/Taichi-iskw/ingest/internal/ratelimit"
	"github.com/Taichi-iskw/ingest/internal/session"
	"go.uber.org/zap"
)

// Failure kinds recorded for a request that did not succeed
const (
	KindTimeout         = "timeout"
	KindConnectionError = "connection_error"
	KindRequestError    = "request_exception"
	KindUnexpectedError = "unexpected_error"
)

// Defaults
const (
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 1.0
	DefaultTimeout       = 30 * time.Second
	DefaultProxyHost     = "proxy.webshare.io"
	DefaultProxyPort     = 80
)

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableMethods = map[string]bool{
	http.MethodHead:    true,
	http.MethodGet:     true,
	http.MethodOptions: true,
	http.MethodPost:    true,
}

// ProxyConfig holds the authenticated forward proxy settings
type ProxyConfig struct {
	Username string
	Password string
	Host     string
	Port     int
}

// Options configures a Client. Zero values fall back to the defaults above,
// except BackoffFactor where 0 disables the delay between attempts.
type Options struct {
	SourceID       string
	BaseURL        string
	UserAgent      string
	RequireContact bool // user agent must carry a contact address
	MaxRetries     int  // total attempts per logical request
	BackoffFactor  float64
	Timeout        time.Duration
	Proxy          *ProxyConfig
	Limiter        ratelimit.Waiter
	Transport      http.RoundTripper
	Tracker        *session.Tracker
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// RequestError describes a logical request that failed after all attempts
type RequestError struct {
	Kind   string
	Status int
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s for %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s for %s", e.Kind, e.URL)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Client performs rate limited requests with bounded retries and classifies failures
type Client struct {
	sourceID      string
	baseURL       string
	userAgent     string
	maxRetries    int
	backoffFactor float64
	limiter       ratelimit.Waiter
	httpClient    *http.Client
	proxyURL      *url.URL
	tracker       *session.Tracker
	metrics       *metrics.Metrics
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// New creates a client. A missing or non-contact user agent is a configuration error.
func New(opts Options) (*Client, error) {
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		return nil, apperrors.New(apperrors.CodeConfiguration, "user agent is required")
	}
	if opts.RequireContact && !strings.Contains(ua, "@") {
		return nil, apperrors.New(apperrors.CodeConfiguration,
			fmt.Sprintf("user agent %q must include a contact email", ua))
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		sourceID:      opts.SourceID,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		userAgent:     ua,
		maxRetries:    opts.MaxRetries,
		backoffFactor: opts.BackoffFactor,
		limiter:       opts.Limiter,
		tracker:       opts.Tracker,
		metrics:       opts.Metrics,
		logger:        logger,
		sleep:         sleepContext,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.backoffFactor < 0 {
		c.backoffFactor = DefaultBackoffFactor
	}
	if c.limiter == nil {
		c.limiter = ratelimit.Nop{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c.proxyURL = buildProxyURL(opts.Proxy, logger)

	transport := opts.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.MaxIdleConns = 20
		base.MaxIdleConnsPerHost = 10
		if c.proxyURL != nil {
			base.Proxy = http.ProxyURL(c.proxyURL)
		}
		transport = base
	}
	c.httpClient = &http.Client{Transport: transport, Timeout: timeout}

	return c, nil
}

func buildProxyURL(cfg *ProxyConfig, logger *zap.Logger) *url.URL {
	if cfg == nil {
		return nil
	}
	if cfg.Username == "" || cfg.Password == "" {
		logger.Warn("Proxy credentials not provided, proceeding without proxy")
		return nil
	}
	host := cfg.Host
	if host == "" {
		host = DefaultProxyHost
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultProxyPort
	}
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   net.JoinHostPort(host, fmt.Sprint(port)),
	}
}

// ProxyURL returns the proxy requests are routed through, or nil
func (c *Client) ProxyURL() *url.URL {
	return c.proxyURL
}

// SetTracker points request accounting at a source's session tracker
func (c *Client) SetTracker(t *session.Tracker) {
	c.tracker = t
}

// BuildURL joins a relative path to the base URL. Absolute URLs pass through.
func (c *Client) BuildURL(path string) string {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return path
	}
	if c.baseURL == "" {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Do performs one logical request.
//
// Retryable statuses and transient transport errors are retried up to MaxRetries
// attempts in total, with backoff between attempts. When the attempts are exhausted
// the failure is recorded once and returned as an AppError wrapping *RequestError.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, header http.Header) (*Response, error) {
	target := c.BuildURL(path)

	var failure *RequestError
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			c.metrics.ObserveRetry(c.sourceID)
			if err := c.sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, canceled(err, target)
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, canceled(err, target)
		}

		resp, attemptErr, retryable := c.attempt(ctx, method, target, body, header)
		if attemptErr == nil {
			c.record(method, nil)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, canceled(ctx.Err(), target)
		}

		failure = attemptErr
		if !retryable || !retryableMethods[method] {
			break
		}
		c.logger.Debug("Retrying request",
			zap.String("url", target),
			zap.String("failure", failure.Kind),
			zap.Int("attempt", attempt))
	}

	c.record(method, failure)
	code := apperrors.CodeTransport
	if failure.Status != 0 {
		code = apperrors.CodeHTTPStatus
	}
	return nil, apperrors.Wrap(failure, code, fmt.Sprintf("%s %s failed", method, target))
}

func (c *Client) attempt(ctx context.Context, method, target string, body []byte, header http.Header) (*Response, *RequestError, bool) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &RequestError{Kind: KindRequestError, URL: target, Err: err}, false
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind, retryable := classify(err)
		return nil, &RequestError{Kind: kind, URL: target, Err: err}, retryable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Kind: KindUnexpectedError, URL: target, Err: err}, false
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &RequestError{
			Kind:   fmt.Sprintf("http_%d", resp.StatusCode),
			Status: resp.StatusCode,
			URL:    target,
		}, retryableStatus[resp.StatusCode]
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        target,
	}, nil, false
}

// classify maps a transport error to its failure kind and whether it is transient
func classify(err error) (string, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectionError, true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnectionError, true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindConnectionError, true
	}
	return KindRequestError, false
}

func (c *Client) record(method string, failure *RequestError) {
	if failure == nil {
		c.metrics.ObserveRequest(c.sourceID, "ok")
		if c.tracker != nil {
			c.tracker.TrackRequest(true, "", "", nil)
		}
		return
	}

	c.metrics.ObserveRequest(c.sourceID, failure.Kind)
	if c.tracker != nil {
		fields := map[string]string{"url": failure.URL, "method": method}
		if failure.Status != 0 {
			fields["status_code"] = fmt.Sprint(failure.Status)
		}
		c.tracker.TrackRequest(false, failure.Kind, failure.Error(), fields)
		return
	}
	c.logger.Error("Request failed", zap.String("url", failure.URL), zap.String("error_type", failure.Kind), zap.Error(failure.Err))
}

// backoff returns the delay before retry n (1-based): factor * 2^(n-1) seconds
func (c *Client) backoff(n int) time.Duration {
	seconds := c.backoffFactor * math.Pow(2, float64(n-1))
	return time.Duration(seconds * float64(time.Second))
}

func canceled(err error, target string) error {
	return apperrors.Wrap(err, apperrors.CodeTransport, fmt.Sprintf("request to %s canceled", target))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Get performs a GET with optional query parameters
func (c *Client) Get(ctx context.Context, path string, query url.Values, header http.Header) (*Response, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + query.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil, header)
}

// Post sends body with the given content type
func (c *Client) Post(ctx context.Context, path, contentType string, body []byte) (*Response, error) {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return c.Do(ctx, http.MethodPost, path, body, header)
}

// GetJSON decodes a GET response into out. An undecodable body is recorded as json_parse_error.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Get(ctx, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		if c.tracker != nil {
			c.tracker.TrackError(session.KindJSONParseError, err.Error(), map[string]string{"url": resp.URL})
		}
		return apperrors.Wrap(err, apperrors.CodeParse, fmt.Sprintf("failed to decode JSON from %s", resp.URL))
	}
	return nil
}

// GetText returns the body of a GET as a string. accept overrides the JSON default when set.
func (c *Client) GetText(ctx context.Context, path string, accept string) (string, error) {
	var header http.Header
	if accept != "" {
		header = http.Header{"Accept": []string{accept}}
	}
	resp, err := c.Get(ctx, path, nil, header)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// FailureKind extracts the recorded failure kind from an error returned by the client
func FailureKind(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return ""
}
