// Package stubserver is an in-process biometric SDK service.
//
// DESIGN: chi router over a Backend interface. Each capability route:
//  1. decodes the request envelope into its typed payload
//  2. calls the Backend
//  3. answers {version, responsetime, response, errors} in nested (default) or flat shape
//
// Backend errors of type envelope.ServiceErrors become the errors list with HTTP 200.
// Any other backend error answers HTTP 500. Every received request is recorded.
//
// Used by package tests and by the CLI "stub" command.
package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/tidwall/sjson"

	"github.com/compresr/biosdk-client/biometrics"
	"github.com/compresr/biosdk-client/internal/envelope"
)

// Backend produces capability results for the stub server.
type Backend interface {
	Init(ctx context.Context, req *envelope.InitRequest) (*biometrics.SDKInfo, error)
	CheckQuality(ctx context.Context, req *envelope.CheckQualityRequest) (*biometrics.QualityCheck, error)
	Match(ctx context.Context, req *envelope.MatchRequest) ([]biometrics.MatchDecision, error)
	ExtractTemplate(ctx context.Context, req *envelope.ExtractTemplateRequest) (*biometrics.BiometricRecord, error)
	Segment(ctx context.Context, req *envelope.SegmentRequest) (*biometrics.BiometricRecord, error)
	ConvertFormat(ctx context.Context, req *envelope.ConvertFormatRequest) (*biometrics.BiometricRecord, error)
}

// Shape selects the response envelope layout.
type Shape int

const (
	// ShapeNested wraps status and payload: {"response": {"statusCode", "statusMessage", "response"}}.
	ShapeNested Shape = iota
	// ShapeFlat puts status and payload at the root.
	ShapeFlat
)

// Received is one recorded request.
type Received struct {
	Path    string
	Version string
	Header  http.Header
	Body    []byte
}

// Server serves the SDK service routes.
type Server struct {
	backend  Backend
	shape    Shape
	basePath string
	failures map[string]int
	logger   zerolog.Logger

	mu       sync.Mutex
	received []Received
}

// Option configures a Server.
type Option func(*Server)

// WithShape selects the response shape.
func WithShape(shape Shape) Option {
	return func(s *Server) { s.shape = shape }
}

// WithBasePath mounts the routes under a prefix such as "/biosdk-service".
func WithBasePath(path string) Option {
	return func(s *Server) { s.basePath = "/" + strings.Trim(path, "/") }
}

// WithHTTPStatus makes the route for path (e.g. "/match") answer status with a
// non-JSON body instead of calling the backend.
func WithHTTPStatus(path string, status int) Option {
	return func(s *Server) { s.failures[path] = status }
}

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a stub server. A nil backend uses EchoBackend.
func New(backend Backend, opts ...Option) *Server {
	if backend == nil {
		backend = &EchoBackend{}
	}
	s := &Server{
		backend:  backend,
		failures: make(map[string]int),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.basePath == "/" {
		s.basePath = ""
	}
	return s
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	routes := func(r chi.Router) {
		r.Post(envelope.PathInit, handle(s, envelope.PathInit, s.backend.Init))
		r.Post(envelope.PathCheckQuality, handle(s, envelope.PathCheckQuality, s.backend.CheckQuality))
		r.Post(envelope.PathMatch, handle(s, envelope.PathMatch, s.backend.Match))
		r.Post(envelope.PathExtractTemplate, handle(s, envelope.PathExtractTemplate, s.backend.ExtractTemplate))
		r.Post(envelope.PathSegment, handle(s, envelope.PathSegment, s.backend.Segment))
		r.Post(envelope.PathConvertFormat, handle(s, envelope.PathConvertFormat, s.backend.ConvertFormat))
	}
	if s.basePath != "" {
		r.Route(s.basePath, routes)
	} else {
		routes(r)
	}

	return r
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Received(nil), s.received...)
}

// RequestsTo returns the recorded requests for one path (e.g. "/init").
func (s *Server) RequestsTo(path string) []Received {
	var out []Received
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(rec Received) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, rec)
}

func handle[Req, Resp any](s *Server, path string, call func(context.Context, *Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeErrors(w, http.StatusBadRequest, envelope.ServiceErrors{{Code: "402", Message: "Missing Input Parameter - request"}})
			return
		}

		if status, ok := s.failures[path]; ok {
			s.record(Received{Path: path, Header: r.Header.Clone(), Body: body})
			http.Error(w, http.StatusText(status), status)
			return
		}

		var req Req
		version, err := envelope.DecodeRequest(body, &req)
		s.record(Received{Path: path, Version: version, Header: r.Header.Clone(), Body: body})
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("invalid request envelope")
			s.writeErrors(w, http.StatusBadRequest, envelope.ServiceErrors{{Code: "401", Message: "Invalid Input Parameter - request"}})
			return
		}

		result, err := call(r.Context(), &req)
		if err != nil {
			var svcErrs envelope.ServiceErrors
			if errors.As(err, &svcErrs) {
				s.writeErrors(w, http.StatusOK, svcErrs)
				return
			}
			s.logger.Error().Err(err).Str("path", path).Msg("backend failed")
			s.writeErrors(w, http.StatusInternalServerError, envelope.ServiceErrors{{Code: "500", Message: err.Error()}})
			return
		}

		payload, err := json.Marshal(result)
		if err != nil {
			s.writeErrors(w, http.StatusInternalServerError, envelope.ServiceErrors{{Code: "500", Message: err.Error()}})
			return
		}
		s.write(w, http.StatusOK, payload, nil)
	}
}

func (s *Server) writeErrors(w http.ResponseWriter, status int, errs envelope.ServiceErrors) {
	s.write(w, status, nil, errs)
}

// write renders the response envelope. A nil payload is written as null.
func (s *Server) write(w http.ResponseWriter, status int, payload []byte, errs envelope.ServiceErrors) {
	body, err := s.render(payload, errs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) render(payload []byte, errs envelope.ServiceErrors) ([]byte, error) {
	if payload == nil {
		payload = []byte("null")
	}
	if errs == nil {
		errs = envelope.ServiceErrors{}
	}
	errList, err := json.Marshal([]envelope.ServiceError(errs))
	if err != nil {
		return nil, err
	}

	statusCode := biometrics.StatusSuccess
	if len(errs) > 0 {
		statusCode = biometrics.StatusUnknownError
	}

	prefix := "response."
	body := []byte(`{}`)
	if s.shape == ShapeFlat {
		prefix = ""
	}

	steps := []struct {
		path string
		raw  bool
		val  any
	}{
		{path: "version", val: envelope.Version},
		{path: "responsetime", val: time.Now().UTC().Format("2006-01-02T15:04:05.000Z")},
		{path: prefix + "statusCode", val: statusCode.Code()},
		{path: prefix + "statusMessage", val: statusCode.Message()},
		{path: prefix + "response", raw: true, val: payload},
		{path: "errors", raw: true, val: errList},
	}
	for _, step := range steps {
		if step.raw {
			body, err = sjson.SetRawBytes(body, step.path, step.val.([]byte))
		} else {
			body, err = sjson.SetBytes(body, step.path, step.val)
		}
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}
