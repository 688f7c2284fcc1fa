// Package transport sends envelope requests to SDK services over pooled HTTP.
//
// DESIGN: One *http.Client per biosdk client, built after init parameters are
// applied:
//   - MaxConnsPerHost / MaxIdleConnsPerHost = max connections per route
//   - MaxIdleConns = max total connections
//   - no cookie jar
//   - InsecureSkipVerify only when ssl bypass is configured
//   - optional SigV4 signing wrapper (sigv4.go)
//
// Responses are read fully. A body over MaxResponseBytes fails with
// ErrResponseTooLarge instead of being cut short. Non-2xx responses are
// returned together with a *StatusError; the body is never parsed here.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/compresr/biosdk-client/internal/config"
	"github.com/compresr/biosdk-client/internal/monitoring"
)

// ErrResponseTooLarge is returned when a response body exceeds MaxResponseBytes.
var ErrResponseTooLarge = errors.New("response too large")

// HeaderRequestID carries the per-call request ID to SDK services.
const HeaderRequestID = "X-Request-ID"

// ContentTypeJSON is the content type of every envelope request.
const ContentTypeJSON = "application/json"

// Client sends requests to SDK services.
type Client struct {
	http             *http.Client
	requests         *monitoring.RequestLogger
	maxResponseBytes int64
}

// Request is an outbound call.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Body        []byte
	Header      http.Header
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "HTTP status: " + e.Status
}

// New builds a pooled client from transport settings.
func New(ctx context.Context, cfg config.TransportConfig, logger zerolog.Logger) (*Client, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxConnsPerHost = cfg.MaxConnectionsPerRoute
	base.MaxIdleConnsPerHost = cfg.MaxConnectionsPerRoute
	base.MaxIdleConns = cfg.MaxTotalConnections
	if cfg.TLSBypass {
		base.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in via auth-adapter-ssl-bypass
		}
		logger.Warn().Msg("TLS certificate verification disabled for SDK service calls")
	}

	var rt http.RoundTripper = base
	if cfg.SigV4Region != "" {
		signing, err := NewSigner(ctx, cfg.SigV4Region, cfg.SigV4Service, base)
		if err != nil {
			return nil, err
		}
		rt = signing
		logger.Info().Str("region", cfg.SigV4Region).Str("service", cfg.SigV4Service).Msg("SigV4 request signing enabled")
	}

	hc := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
	return NewWithHTTPClient(hc, cfg, logger), nil
}

// NewWithHTTPClient wraps an existing *http.Client. Pool settings in cfg are
// ignored; body debugging and the response cap still apply.
func NewWithHTTPClient(hc *http.Client, cfg config.TransportConfig, logger zerolog.Logger) *Client {
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxResponseBytes
	}
	return &Client{
		http:             hc,
		requests:         monitoring.NewRequestLogger(logger, cfg.DebugRequestResponse, 0),
		maxResponseBytes: maxBytes,
	}
}

// PostJSON sends body as a JSON POST.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, ContentType: ContentTypeJSON, Body: body})
}

// Do sends the request and reads the full response.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	ctx, requestID := monitoring.EnsureRequestID(ctx)

	method := r.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	req.Header.Set(HeaderRequestID, requestID)

	c.requests.LogOutgoing(&monitoring.OutgoingRequestInfo{
		RequestID: requestID,
		Method:    method,
		URL:       r.URL,
		BodySize:  len(r.Body),
	})
	c.requests.LogBody(requestID, "request", r.Body)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.requests.LogFailure(requestID, r.URL, err)
		return nil, fmt.Errorf("request to %s failed: %w", r.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		c.requests.LogFailure(requestID, r.URL, err)
		return nil, fmt.Errorf("failed to read response from %s: %w", r.URL, err)
	}
	if int64(len(body)) > c.maxResponseBytes {
		err := fmt.Errorf("%w: response from %s exceeds %d bytes", ErrResponseTooLarge, r.URL, c.maxResponseBytes)
		c.requests.LogFailure(requestID, r.URL, err)
		return nil, err
	}

	c.requests.LogResponse(&monitoring.ResponseInfo{
		RequestID:  requestID,
		URL:        r.URL,
		StatusCode: resp.StatusCode,
		BodySize:   len(body),
		Latency:    time.Since(start),
	})
	c.requests.LogBody(requestID, "response", body)

	out := &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}
	if !out.OK() {
		return out, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return out, nil
}
