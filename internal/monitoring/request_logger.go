// Package monitoring - request_logger.go logs outbound SDK call lifecycle.
//
// DESIGN: Structured logging for call tracing at DEBUG level:
//   - LogOutgoing: request sent to an SDK service
//   - LogResponse: response received (status, latency)
//   - LogBody:     raw request/response bodies, only when body debugging is on
//   - LogFailure:  transport failure, at ERROR
package monitoring

import (
	"time"

	"github.com/rs/zerolog"
)

// RequestLogger logs outbound call lifecycle events.
type RequestLogger struct {
	logger     zerolog.Logger
	logBodies  bool
	maxBodyLog int
}

// NewRequestLogger creates a request logger. When logBodies is set, bodies are
// logged at debug level, truncated to maxBodyLog bytes (0 = no limit).
func NewRequestLogger(logger zerolog.Logger, logBodies bool, maxBodyLog int) *RequestLogger {
	return &RequestLogger{logger: logger, logBodies: logBodies, maxBodyLog: maxBodyLog}
}

// OutgoingRequestInfo contains outgoing request information.
type OutgoingRequestInfo struct {
	RequestID string
	Method    string
	URL       string
	BodySize  int
}

// LogOutgoing logs an outgoing request.
func (rl *RequestLogger) LogOutgoing(info *OutgoingRequestInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("method", info.Method).
		Str("url", info.URL).
		Int("body_size", info.BodySize).
		Msg("outgoing")
}

// ResponseInfo contains response information.
type ResponseInfo struct {
	RequestID  string
	URL        string
	StatusCode int
	BodySize   int
	Latency    time.Duration
}

// LogResponse logs a response.
func (rl *RequestLogger) LogResponse(info *ResponseInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("url", info.URL).
		Int("status", info.StatusCode).
		Int("body_size", info.BodySize).
		Dur("latency", info.Latency).
		Msg("response")
}

// LogBody logs a request or response body when body debugging is enabled.
func (rl *RequestLogger) LogBody(requestID, direction string, body []byte) {
	if !rl.logBodies {
		return
	}
	if rl.maxBodyLog > 0 && len(body) > rl.maxBodyLog {
		body = body[:rl.maxBodyLog]
	}
	rl.logger.Debug().
		Str("request_id", requestID).
		Str("direction", direction).
		Bytes("body", body).
		Msg("body")
}

// LogFailure logs a call that failed before a response was read.
func (rl *RequestLogger) LogFailure(requestID, url string, err error) {
	rl.logger.Error().
		Err(err).
		Str("request_id", requestID).
		Str("url", url).
		Msg("sdk service call failed")
}
