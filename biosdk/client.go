// Package biosdk is a biometric SDK client that delegates every capability to
// remote SDK services over HTTP.
//
// DESIGN: Client moves from uninitialized to ready through Init:
//  1. format.url.* init params → routing map (fallback: config/env default URL)
//  2. config.parameter.* init params → overlay on the client's Config
//  3. POST /init to each distinct service URL, aggregate the SDKInfo values
//
// Capability calls pick a service URL from the modality and flags, send a
// request envelope, and decode the response envelope into a typed Response.
// Every failure surfaces as *Error with code "500"; nothing is retried.
//
// Init works on a copy of the configuration. The parameter overlay, URL map,
// SDKInfo and the first HTTP transport are committed together only after every
// service answered /init, so a failed Init leaves the client as it was. The
// transport is kept across later Inits; a failed transport build is retried by
// the next Init. WithHTTPClient replaces the pooled transport.
//
// FILES:
//   - client.go:     Client, New, options, Init
//   - operations.go: capability operations
//   - errors.go:     Error, ErrNotInitialized
package biosdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compresr/biosdk-client/biometrics"
	"github.com/compresr/biosdk-client/internal/config"
	"github.com/compresr/biosdk-client/internal/envelope"
	"github.com/compresr/biosdk-client/internal/monitoring"
	"github.com/compresr/biosdk-client/internal/routing"
	"github.com/compresr/biosdk-client/internal/transport"
)

// Config is the client configuration. See DefaultConfig and LoadConfig.
type Config = config.Config

// DefaultConfig returns a configuration built from environment and defaults.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

const tracerName = "github.com/compresr/biosdk-client/biosdk"

// Client is a biometric SDK client backed by remote SDK services.
type Client struct {
	logger     zerolog.Logger
	metrics    *monitoring.Metrics
	alerts     *monitoring.AlertManager
	calls      *monitoring.Tracker
	tracer     trace.Tracer
	httpClient *http.Client
	registerer prometheus.Registerer

	// Init stages cfg, urls, sdkInfo and the first transport, and commits them
	// together under mu once every service answered.
	mu        sync.RWMutex
	cfg       *config.Config
	urls      *routing.Map
	sdkInfo   *biometrics.SDKInfo
	transport *transport.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient injects the HTTP client used for SDK service calls. Pool and TLS
// settings from the configuration are then ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics registers call metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.registerer = reg }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The default is the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// New creates an uninitialized client. cfg is copied; nil means DefaultConfig.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	} else {
		cfg = cfg.Clone()
		cfg.ApplyEnv()
		cfg.ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, wrapError(fmt.Errorf("invalid configuration: %w", err))
	}

	c := &Client{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.registerer != nil {
		m, err := monitoring.NewMetrics(c.registerer)
		if err != nil {
			return nil, wrapError(fmt.Errorf("failed to register metrics: %w", err))
		}
		c.metrics = m
	}
	c.alerts = monitoring.NewAlertManager(c.logger, cfg.Alerts)
	calls, err := monitoring.NewTracker(cfg.CallLog, c.logger)
	if err != nil {
		return nil, wrapError(fmt.Errorf("failed to open call log: %w", err))
	}
	c.calls = calls
	return c, nil
}

// Close flushes the call log summary. The client stays usable.
func (c *Client) Close() error {
	return c.calls.Close()
}

// Init registers the service URLs found in params, applies the parameter overlay
// and initializes every distinct service. It returns the aggregated SDKInfo, which
// is nil when no service reported one.
func (c *Client) Init(ctx context.Context, params map[string]string) (info *biometrics.SDKInfo, err error) {
	ctx, finish := c.begin(ctx, "init")
	defer func() { err = finish(err) }()

	c.mu.RLock()
	cfg := c.cfg.Clone()
	tr := c.transport
	c.mu.RUnlock()

	urls, err := routing.Build(params, cfg.DefaultServiceURL)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyParameters(routing.Parameters(params)); err != nil {
		return nil, fmt.Errorf("invalid config.parameter overlay: %w", err)
	}

	if tr == nil {
		if tr, err = c.newTransport(ctx, cfg.Transport); err != nil {
			return nil, err
		}
	}

	initParams := params
	if initParams == nil {
		initParams = map[string]string{}
	}

	var infos []*biometrics.SDKInfo
	for _, baseURL := range urls.URLs() {
		resp, err := post[*biometrics.SDKInfo](ctx, c, tr, baseURL+envelope.PathInit, envelope.InitRequest{InitParams: initParams})
		if err != nil {
			return nil, err
		}
		if resp.Response != nil {
			infos = append(infos, resp.Response)
		}
		c.logger.Info().Str("url", baseURL).Msg("SDK service initialized")
	}

	info = biometrics.AggregateSDKInfo(infos)

	c.mu.Lock()
	c.cfg = cfg
	c.urls = urls
	c.sdkInfo = info
	if c.transport == nil {
		c.transport = tr
	}
	c.mu.Unlock()

	return info, nil
}

// SDKInfo returns the aggregated SDKInfo from the last successful Init.
func (c *Client) SDKInfo() *biometrics.SDKInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sdkInfo
}

// URLs returns the registered service URL entries, nil before Init.
func (c *Client) URLs() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.urls == nil {
		return nil
	}
	out := make(map[string]string)
	for _, e := range c.urls.Entries() {
		out[e.Key] = e.URL
	}
	return out
}

// Parameter returns a config.parameter.* overlay value by name (without prefix).
func (c *Client) Parameter(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Parameter(name)
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Clone()
}

// ready returns the committed URL map and transport.
func (c *Client) ready() (*routing.Map, *transport.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.urls == nil || c.transport == nil {
		return nil, nil, ErrNotInitialized
	}
	return c.urls, c.transport, nil
}

// newTransport builds an HTTP transport from tcfg. A failed build is not
// remembered, so a later Init retries it.
func (c *Client) newTransport(ctx context.Context, tcfg config.TransportConfig) (*transport.Client, error) {
	if c.httpClient != nil {
		return transport.NewWithHTTPClient(c.httpClient, tcfg, c.logger), nil
	}
	return transport.New(context.WithoutCancel(ctx), tcfg, c.logger)
}

// callState collects per-call details for the call log.
type callState struct {
	requestID string
	url       string
}

type callStateKey struct{}

// begin opens the span for an operation. The returned function records metrics,
// the call log and alerts, logs failures, closes the span and converts err into *Error.
func (c *Client) begin(ctx context.Context, operation string) (context.Context, func(error) error) {
	ctx, requestID := monitoring.EnsureRequestID(ctx)
	ctx, span := c.tracer.Start(ctx, "biosdk."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("biosdk.operation", operation),
			attribute.String("biosdk.request_id", requestID),
		),
	)
	call := &callState{requestID: requestID}
	ctx = context.WithValue(ctx, callStateKey{}, call)
	start := time.Now()

	return ctx, func(err error) error {
		elapsed := time.Since(start)
		defer span.End()

		c.metrics.Observe(operation, elapsed, err)
		c.alerts.FlagSlowCall(requestID, operation, elapsed)
		event := &monitoring.CallEvent{
			RequestID:  requestID,
			Timestamp:  start,
			Operation:  operation,
			URL:        call.url,
			Success:    err == nil,
			DurationMS: elapsed.Milliseconds(),
		}
		if err != nil {
			event.Error = err.Error()
		}
		c.calls.RecordCall(event)

		if err == nil {
			return nil
		}
		var svcErrs envelope.ServiceErrors
		if errors.As(err, &svcErrs) {
			c.alerts.FlagServiceErrors(requestID, operation, len(svcErrs))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error().
			Err(err).
			Str("operation", operation).
			Str("request_id", requestID).
			Dur("duration", elapsed).
			Msg("biosdk operation failed")
		return wrapError(err)
	}
}

// post sends payload to url and decodes the response envelope.
func post[T any](ctx context.Context, c *Client, tr *transport.Client, url string, payload any) (biometrics.Response[T], error) {
	var zero biometrics.Response[T]

	body, err := marshalEnvelope(payload)
	if err != nil {
		return zero, err
	}

	resp, err := c.send(ctx, tr, url, body)
	if err != nil {
		return zero, err
	}
	return envelope.Decode[T](resp.Body)
}

func (c *Client) send(ctx context.Context, tr *transport.Client, url string, body []byte) (*transport.Response, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("biosdk.url", url))
	call, _ := ctx.Value(callStateKey{}).(*callState)
	if call != nil {
		call.url = url
	}

	resp, err := tr.PostJSON(ctx, url, body)
	if err != nil {
		var statusErr *transport.StatusError
		if call != nil && errors.As(err, &statusErr) {
			c.alerts.FlagServiceStatus(call.requestID, url, statusErr.StatusCode)
		}
		return nil, err
	}
	return resp, nil
}

func marshalEnvelope(payload any) ([]byte, error) {
	req, err := envelope.Encode(payload)
	if err != nil {
		return nil, err
	}
	return req.Marshal()
}
