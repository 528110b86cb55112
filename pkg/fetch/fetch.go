// Package fetch is the thin convenience layer composing an HTTP transport
// with the backoff executor. The transport is muted: any HTTP status,
// including failures, comes back as a *Response rather than an error, so the
// executor alone decides what is retryable. Transport-level errors (DNS,
// connection resets) surface as operation failures and follow the normal
// retry policy.
package fetch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	stdhttp "net/http"
	"time"

	"errguard/pkg/backoff"
)

// Response is the muted result of one HTTP exchange. It satisfies
// backoff.HTTPResult and is fully buffered: the transport connection is
// released before the executor sees it.
type Response struct {
	code   int
	header stdhttp.Header
	body   []byte
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int { return r.code }

// Header returns the response headers.
func (r *Response) Header() stdhttp.Header { return r.header }

// Body returns the raw response body.
func (r *Response) Body() []byte { return r.body }

// Text returns the response body as a string.
func (r *Response) Text() string { return string(r.body) }

// Params describe one request.
type Params struct {
	Method      string // defaults to GET
	Headers     map[string]string
	ContentType string
	Payload     []byte
}

// Client wraps http.Client with the retry executor.
type Client struct {
	hc      *stdhttp.Client
	exec    *backoff.Executor
	log     *slog.Logger
	headers map[string]string
	opts    backoff.Options
	maxBody int64
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithTransport sets a custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHeaders adds default headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string, len(h))
		}
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithBackoffOptions sets the retry options every Fetch runs under.
func WithBackoffOptions(o backoff.Options) Option {
	return func(c *Client) { c.opts = o }
}

// WithMaxBodySize caps how much of a response body is buffered (0 keeps the
// default of 4 MiB).
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// New creates a configured Client over the given executor.
func New(exec *backoff.Executor, opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxIdleConnsPerHost = 100
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 10 * time.Second

	c := &Client{
		hc: &stdhttp.Client{
			Timeout:   15 * time.Second,
			Transport: tr,
		},
		exec:    exec,
		log:     slog.Default(),
		maxBody: 4 << 20,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch performs the request under the retry policy. Status-500 responses
// are retried; on exhaustion the last response is returned with a nil error,
// so callers on this path always receive a response-like value. Other
// statuses pass through as success regardless of value.
func (c *Client) Fetch(ctx context.Context, url string, params *Params) (*Response, error) {
	if params == nil {
		params = &Params{}
	}
	method := params.Method
	if method == "" {
		method = stdhttp.MethodGet
	}

	op := func(ctx context.Context) backoff.Outcome {
		var body io.Reader
		if len(params.Payload) > 0 {
			body = bytes.NewReader(params.Payload)
		}
		req, err := stdhttp.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Failure(err)
		}
		for k, v := range c.headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
		for k, v := range params.Headers {
			req.Header.Set(k, v)
		}
		if params.ContentType != "" {
			req.Header.Set("Content-Type", params.ContentType)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			c.log.Warn("http request error",
				slog.String("method", method), slog.String("url", url), slog.Any("error", err))
			return backoff.Failure(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
		if err != nil {
			return backoff.Failure(err)
		}
		c.log.Debug("http request",
			slog.String("method", method), slog.String("url", url),
			slog.Int("status", resp.StatusCode), slog.Duration("dur", time.Since(start)))
		return backoff.HTTP(&Response{code: resp.StatusCode, header: resp.Header, body: data})
	}

	v, err := c.exec.Do(ctx, op, c.opts)
	if err != nil {
		return nil, err
	}
	// The operation only ever produces HTTP outcomes or failures.
	resp, _ := v.(*Response)
	return resp, nil
}
