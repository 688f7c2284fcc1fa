package biosdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/compresr/biosdk-client/biometrics"
	"github.com/compresr/biosdk-client/biosdk"
	"github.com/compresr/biosdk-client/internal/config"
	"github.com/compresr/biosdk-client/internal/envelope"
	"github.com/compresr/biosdk-client/internal/routing"
	"github.com/compresr/biosdk-client/internal/stubserver"
)

// =============================================================================
// HELPERS
// =============================================================================

type stubService struct {
	stub *stubserver.Server
	srv  *httptest.Server
}

func newStub(t *testing.T, backend stubserver.Backend, opts ...stubserver.Option) *stubService {
	t.Helper()
	stub := stubserver.New(backend, opts...)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return &stubService{stub: stub, srv: srv}
}

func newClient(t *testing.T, opts ...biosdk.Option) *biosdk.Client {
	t.Helper()
	t.Setenv(config.EnvServiceURL, "")
	c, err := biosdk.New(nil, opts...)
	require.NoError(t, err)
	return c
}

func fingerRecord(data string) *biometrics.BiometricRecord {
	return &biometrics.BiometricRecord{
		Segments: []biometrics.BIR{{
			BdbInfo: &biometrics.BDBInfo{Type: []biometrics.Modality{biometrics.Finger}},
			Bdb:     []byte(data),
		}},
	}
}

// rawServer answers /init with an empty SDKInfo and every other path with the
// given status and body.
func rawServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/init" {
			_, _ = w.Write([]byte(`{"version":"1.0","response":{"statusCode":200,"statusMessage":"OK","response":{"sdkVersion":"raw"}},"errors":[]}`))
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// initialized returns a client routed to url only.
func initialized(t *testing.T, url string) *biosdk.Client {
	t.Helper()
	c := newClient(t)
	_, err := c.Init(context.Background(), map[string]string{"format.url.default": url})
	require.NoError(t, err)
	return c
}

// =============================================================================
// INIT TESTS
// =============================================================================

func TestInit_NoServiceURL(t *testing.T) {
	c := newClient(t)

	info, err := c.Init(context.Background(), map[string]string{"something": "else"})
	require.Error(t, err)
	assert.Nil(t, info)

	var clientErr *biosdk.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "500", clientErr.Code)
	assert.Contains(t, err.Error(), "No valid sdk service url configured")
	assert.ErrorIs(t, err, routing.ErrNoServiceURL)
}

func TestInit_DefaultAndTestServices(t *testing.T) {
	def := newStub(t, &stubserver.EchoBackend{Name: "default", Modalities: []biometrics.Modality{biometrics.Finger}})
	test := newStub(t, &stubserver.EchoBackend{Name: "test", Modalities: []biometrics.Modality{biometrics.Face, biometrics.Finger}})
	c := newClient(t)

	info, err := c.Init(context.Background(), map[string]string{
		"format.url.default": def.srv.URL,
		"format.url.test":    test.srv.URL,
	})
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Len(t, def.stub.RequestsTo("/init"), 1)
	assert.Len(t, test.stub.RequestsTo("/init"), 1)
	assert.Equal(t, "default", info.ProductOwner.Type)
	assert.Equal(t, []biometrics.Modality{biometrics.Finger, biometrics.Face}, info.SupportedModalities)
	assert.Equal(t, "test", info.OtherInfo["backend"])
	assert.Equal(t, map[string]string{"default": def.srv.URL, "test": test.srv.URL}, c.URLs())
	assert.Equal(t, info, c.SDKInfo())

	resp, err := c.CheckQuality(context.Background(), fingerRecord("f"),
		[]biometrics.Modality{biometrics.Finger}, map[string]string{"FINGER.format": "test"})
	require.NoError(t, err)
	require.NotNil(t, resp.StatusCode)
	assert.Equal(t, 200, *resp.StatusCode)
	assert.Len(t, test.stub.RequestsTo("/check-quality"), 1)
	assert.Empty(t, def.stub.RequestsTo("/check-quality"))

	_, err = c.CheckQuality(context.Background(), fingerRecord("f"), []biometrics.Modality{biometrics.Finger}, nil)
	require.NoError(t, err)
	assert.Len(t, def.stub.RequestsTo("/check-quality"), 1)
}

func TestInit_TestOnlyServiceBecomesDefault(t *testing.T) {
	test := newStub(t, nil)
	c := newClient(t)

	_, err := c.Init(context.Background(), map[string]string{"format.url.test": test.srv.URL})
	require.NoError(t, err)

	assert.Len(t, test.stub.RequestsTo("/init"), 1)
	assert.Equal(t, test.srv.URL, c.URLs()["default"])

	_, err = c.Segment(context.Background(), fingerRecord("f"), nil, nil)
	require.NoError(t, err)
	assert.Len(t, test.stub.RequestsTo("/segment"), 1)
}

func TestInit_ConfigDefaultURL(t *testing.T) {
	svc := newStub(t, nil)
	t.Setenv(config.EnvServiceURL, "")

	cfg := biosdk.DefaultConfig()
	cfg.DefaultServiceURL = svc.srv.URL
	c, err := biosdk.New(cfg)
	require.NoError(t, err)

	_, err = c.Init(context.Background(), map[string]string{})
	require.NoError(t, err)
	assert.Len(t, svc.stub.RequestsTo("/init"), 1)
}

func TestInit_EnvironmentDefaultURL(t *testing.T) {
	svc := newStub(t, nil)
	t.Setenv(config.EnvServiceURL, svc.srv.URL)

	c, err := biosdk.New(nil)
	require.NoError(t, err)

	_, err = c.Init(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, svc.srv.URL, c.URLs()["default"])
}

func TestInit_ParameterOverlay(t *testing.T) {
	svc := newStub(t, nil)
	c := newClient(t)

	_, err := c.Init(context.Background(), map[string]string{
		"format.url.default": svc.srv.URL,
		"config.parameter.restTemplate-total-max-connections":    "50",
		"config.parameter.restTemplate-max-connection-per-route": "5",
		"config.parameter.vendor-flag":                           "on",
	})
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, 50, cfg.Transport.MaxTotalConnections)
	assert.Equal(t, 5, cfg.Transport.MaxConnectionsPerRoute)

	v, ok := c.Parameter("vendor-flag")
	require.True(t, ok)
	assert.Equal(t, "on", v)
}

func TestInit_ServiceFailure(t *testing.T) {
	svc := newStub(t, nil, stubserver.WithHTTPStatus("/init", http.StatusInternalServerError))
	c := newClient(t)

	_, err := c.Init(context.Background(), map[string]string{"format.url.default": svc.srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP status")

	_, err = c.Segment(context.Background(), fingerRecord("f"), nil, nil)
	assert.ErrorIs(t, err, biosdk.ErrNotInitialized, "failed init leaves the client uninitialized")
}

func TestInit_RejectedOverlayIsNotApplied(t *testing.T) {
	svc := newStub(t, nil)
	c := newClient(t)

	_, err := c.Init(context.Background(), map[string]string{
		"format.url.default": svc.srv.URL,
		"config.parameter.restTemplate-max-connection-per-route": "-1",
		"config.parameter.vendor-flag":                           "on",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.parameter")
	assert.Empty(t, svc.stub.RequestsTo("/init"))

	cfg := c.Config()
	assert.Equal(t, config.DefaultMaxConnectionsPerRoute, cfg.Transport.MaxConnectionsPerRoute)
	_, ok := c.Parameter("vendor-flag")
	assert.False(t, ok)
	assert.Nil(t, c.URLs())
}

func TestInit_FailedInitDiscardsOverlayAndTransport(t *testing.T) {
	failing := newStub(t, nil, stubserver.WithHTTPStatus("/init", http.StatusInternalServerError))
	tlsStub := stubserver.New(nil)
	tlsSrv := httptest.NewTLSServer(tlsStub.Handler())
	t.Cleanup(tlsSrv.Close)
	c := newClient(t)

	_, err := c.Init(context.Background(), map[string]string{
		"format.url.default":                       failing.srv.URL,
		"config.parameter.auth-adapter-ssl-bypass": "true",
	})
	require.Error(t, err)
	assert.False(t, c.Config().Transport.TLSBypass)
	_, ok := c.Parameter("auth-adapter-ssl-bypass")
	assert.False(t, ok)

	// The transport staged by the failed Init skipped certificate checks; it
	// must not be reused, so a TLS service with a self-signed cert is refused.
	_, err = c.Init(context.Background(), map[string]string{"format.url.default": tlsSrv.URL})
	require.Error(t, err)
	assert.Empty(t, tlsStub.RequestsTo("/init"))

	_, err = c.Init(context.Background(), map[string]string{
		"format.url.default":                       tlsSrv.URL,
		"config.parameter.auth-adapter-ssl-bypass": "true",
	})
	require.NoError(t, err)
	assert.True(t, c.Config().Transport.TLSBypass)
	assert.Len(t, tlsStub.RequestsTo("/init"), 1)
}

func TestInit_RetriesFailedTransportBuild(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	for _, key := range []string{
		"AWS_PROFILE", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
		"AWS_WEB_IDENTITY_TOKEN_FILE", "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI",
		"AWS_CONTAINER_CREDENTIALS_FULL_URI",
	} {
		t.Setenv(key, "")
	}

	svc := newStub(t, nil)
	t.Setenv(config.EnvServiceURL, "")
	cfg := biosdk.DefaultConfig()
	cfg.Transport.SigV4Region = "eu-west-1"
	c, err := biosdk.New(cfg)
	require.NoError(t, err)
	params := map[string]string{"format.url.default": svc.srv.URL}

	_, err = c.Init(context.Background(), params)
	require.Error(t, err)
	assert.Empty(t, svc.stub.RequestsTo("/init"))

	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	_, err = c.Init(context.Background(), params)
	require.NoError(t, err)
	reqs := svc.stub.RequestsTo("/init")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Header.Get("Authorization"), "Credential=AKIDEXAMPLE/")
}

// =============================================================================
// CAPABILITY TESTS
// =============================================================================

func TestCapability_NotInitialized(t *testing.T) {
	c := newClient(t)

	_, err := c.Match(context.Background(), fingerRecord("a"), nil, nil, nil)
	require.Error(t, err)

	var clientErr *biosdk.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "500", clientErr.Code)
	assert.ErrorIs(t, err, biosdk.ErrNotInitialized)
}

func TestCapability_HTTPErrorStatus(t *testing.T) {
	svc := newStub(t, nil, stubserver.WithHTTPStatus("/check-quality", http.StatusInternalServerError))
	c := newClient(t)
	_, err := c.Init(context.Background(), map[string]string{"format.url.default": svc.srv.URL})
	require.NoError(t, err)

	resp, err := c.CheckQuality(context.Background(), fingerRecord("f"), []biometrics.Modality{biometrics.Finger}, nil)
	require.Error(t, err)
	assert.Nil(t, resp)

	var clientErr *biosdk.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "500", clientErr.Code)
	assert.Contains(t, clientErr.Message, "500")
	assert.Contains(t, clientErr.Message, "HTTP status")
}

func TestCapability_NullNestedResponse(t *testing.T) {
	body := `{"version":"1.0","response":{"statusCode":null,"statusMessage":null,"response":null},"errors":[]}`
	c := initialized(t, rawServer(t, http.StatusOK, body).URL)

	resp, err := c.ExtractTemplate(context.Background(), fingerRecord("f"), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.StatusCode)
	assert.Equal(t, "", resp.StatusMessage)
	assert.Nil(t, resp.Response)
}

func TestCapability_ServiceErrors(t *testing.T) {
	body := `{"response":null,"errors":[{"code":"ERR001","message":"first failure"},{"code":"ERR002","message":"second failure"}]}`
	c := initialized(t, rawServer(t, http.StatusOK, body).URL)

	_, err := c.Match(context.Background(), fingerRecord("a"), []*biometrics.BiometricRecord{fingerRecord("a")}, nil, nil)
	require.Error(t, err)

	var clientErr *biosdk.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "500", clientErr.Code)
	for _, want := range []string{"ERR001", "first failure", "ERR002", "second failure"} {
		assert.Contains(t, clientErr.Message, want)
	}
	var svcErrs envelope.ServiceErrors
	assert.ErrorAs(t, err, &svcErrs)
}

func TestCapability_EnvelopeRoundTrip(t *testing.T) {
	svc := newStub(t, nil)
	c := initialized(t, svc.srv.URL)

	sample := fingerRecord("finger-data")
	flags := map[string]string{"finger.format": "iso"}
	resp, err := c.Match(context.Background(), sample,
		[]*biometrics.BiometricRecord{fingerRecord("other"), fingerRecord("finger-data")},
		[]biometrics.Modality{biometrics.Finger}, flags)
	require.NoError(t, err)
	require.Len(t, resp.Response, 2)
	assert.Equal(t, biometrics.Matched, resp.Response[1].Decisions[biometrics.Finger].Match)

	recorded := svc.stub.RequestsTo("/match")
	require.Len(t, recorded, 1)
	assert.Equal(t, "1.0", recorded[0].Version)
	assert.Equal(t, "application/json", recorded[0].Header.Get("Content-Type"))
	assert.NotEmpty(t, recorded[0].Header.Get("X-Request-ID"))

	var decoded envelope.MatchRequest
	_, err = envelope.DecodeRequest(recorded[0].Body, &decoded)
	require.NoError(t, err)
	assert.Equal(t, sample.Segments[0].Bdb, decoded.Sample.Segments[0].Bdb)
	assert.Equal(t, []biometrics.Modality{biometrics.Finger}, decoded.ModalitiesToMatch)
	assert.Equal(t, flags, decoded.Flags)
	assert.Len(t, decoded.Gallery, 2)
}

func TestCapability_ExtractTemplateScansFlags(t *testing.T) {
	def := newStub(t, nil)
	iris := newStub(t, nil)
	c := newClient(t)
	_, err := c.Init(context.Background(), map[string]string{
		"format.url.default": def.srv.URL,
		"format.url.iris":    iris.srv.URL,
	})
	require.NoError(t, err)

	_, err = c.ExtractTemplate(context.Background(), fingerRecord("f"), nil, map[string]string{"IRIS.format": "iris"})
	require.NoError(t, err)
	assert.Len(t, iris.stub.RequestsTo("/extract-template"), 1)
	assert.Empty(t, def.stub.RequestsTo("/extract-template"))
}

func TestCapability_FlatShape(t *testing.T) {
	svc := newStub(t, nil, stubserver.WithShape(stubserver.ShapeFlat))
	c := initialized(t, svc.srv.URL)

	resp, err := c.CheckQuality(context.Background(), fingerRecord("f"), []biometrics.Modality{biometrics.Finger}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.StatusCode)
	assert.Equal(t, 200, *resp.StatusCode)
	assert.Equal(t, "OK", resp.StatusMessage)
	assert.InDelta(t, 90, resp.Response.Scores[biometrics.Finger].Score, 0.001)
}

// =============================================================================
// CONVERT FORMAT TESTS
// =============================================================================

func TestConvertFormat_Legacy(t *testing.T) {
	svc := newStub(t, nil, stubserver.WithShape(stubserver.ShapeFlat))
	c := initialized(t, svc.srv.URL)

	record, err := c.ConvertFormat(context.Background(), biosdk.ConvertFormatRequest{
		Sample:       fingerRecord("f"),
		SourceFormat: "ISO19794_4_2011",
		TargetFormat: "IMAGE/PNG",
	})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "IMAGE/PNG", record.Others["targetFormat"])
}

func TestConvertFormat_LegacyNullResponse(t *testing.T) {
	c := initialized(t, rawServer(t, http.StatusOK, `{"response":null,"errors":[]}`).URL)

	record, err := c.ConvertFormat(context.Background(), biosdk.ConvertFormatRequest{Sample: fingerRecord("f")})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestConvertFormatV2_UsesDefault(t *testing.T) {
	def := newStub(t, nil)
	other := newStub(t, nil)
	c := newClient(t)
	_, err := c.Init(context.Background(), map[string]string{
		"format.url.default": def.srv.URL,
		"format.url.finger":  other.srv.URL,
	})
	require.NoError(t, err)

	resp, err := c.ConvertFormatV2(context.Background(), biosdk.ConvertFormatRequest{
		Sample:       fingerRecord("f"),
		TargetFormat: "IMAGE/JPEG",
		Modalities:   []biometrics.Modality{biometrics.Finger},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Response)
	assert.Equal(t, "IMAGE/JPEG", resp.Response.Others["targetFormat"])
	assert.Len(t, def.stub.RequestsTo("/convert-format"), 1)
	assert.Empty(t, other.stub.RequestsTo("/convert-format"))
}

// =============================================================================
// OPTION TESTS
// =============================================================================

func TestWithMetrics(t *testing.T) {
	svc := newStub(t, nil)
	reg := prometheus.NewRegistry()
	c := newClient(t, biosdk.WithMetrics(reg))

	_, err := c.Segment(context.Background(), fingerRecord("f"), nil, nil)
	require.Error(t, err)

	_, err = c.Init(context.Background(), map[string]string{"format.url.default": svc.srv.URL})
	require.NoError(t, err)
	_, err = c.Segment(context.Background(), fingerRecord("f"), nil, nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "biosdk_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestWithHTTPClient(t *testing.T) {
	svc := newStub(t, nil)
	var used bool
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used = true
		return http.DefaultTransport.RoundTrip(r)
	})}

	c := newClient(t, biosdk.WithHTTPClient(hc))
	_, err := c.Init(context.Background(), map[string]string{"format.url.default": svc.srv.URL})
	require.NoError(t, err)
	assert.True(t, used)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := biosdk.DefaultConfig()
	cfg.Logging.Level = "loud"

	_, err := biosdk.New(cfg)
	require.Error(t, err)
	var clientErr *biosdk.Error
	assert.True(t, errors.As(err, &clientErr))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestCallLog(t *testing.T) {
	svc := newStub(t, nil, stubserver.WithHTTPStatus("/segment", http.StatusBadGateway))
	t.Setenv(config.EnvServiceURL, "")

	path := filepath.Join(t.TempDir(), "calls.jsonl")
	cfg := biosdk.DefaultConfig()
	cfg.CallLog.Enabled = true
	cfg.CallLog.Path = path
	c, err := biosdk.New(cfg)
	require.NoError(t, err)

	_, err = c.Init(context.Background(), map[string]string{"format.url.default": svc.srv.URL})
	require.NoError(t, err)
	_, err = c.Segment(context.Background(), fingerRecord("f"), nil, nil)
	require.Error(t, err)
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t, "init", gjson.Get(lines[0], "operation").String())
	assert.True(t, gjson.Get(lines[0], "success").Bool())
	assert.Equal(t, svc.srv.URL+"/init", gjson.Get(lines[0], "url").String())

	assert.Equal(t, "segment", gjson.Get(lines[1], "operation").String())
	assert.False(t, gjson.Get(lines[1], "success").Bool())
	assert.Contains(t, gjson.Get(lines[1], "error").String(), "502")
	assert.NotEmpty(t, gjson.Get(lines[1], "request_id").String())
}
