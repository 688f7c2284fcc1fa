// Package monitoring - alerts.go flags slow and failing SDK calls.
//
// DESIGN: AlertManager logs notable events at WARN so they stand out from the
// DEBUG call trace:
//   - FlagSlowCall:      operation exceeded the configured threshold
//   - FlagServiceStatus: SDK service answered with a non-2xx status
//   - FlagServiceErrors: SDK service answered 2xx with an errors list
//
// A nil *AlertManager is valid and flags nothing.
package monitoring

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/compresr/biosdk-client/internal/config"
)

// AlertManager flags anomalies in SDK calls.
type AlertManager struct {
	logger            zerolog.Logger
	slowCallThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger zerolog.Logger, cfg config.AlertConfig) *AlertManager {
	threshold := cfg.SlowCallThreshold
	if threshold == 0 {
		threshold = config.DefaultSlowCallThreshold
	}
	return &AlertManager{logger: logger, slowCallThreshold: threshold}
}

// FlagSlowCall logs when an operation took longer than the threshold.
func (am *AlertManager) FlagSlowCall(requestID, operation string, latency time.Duration) bool {
	if am == nil || latency < am.slowCallThreshold {
		return false
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Str("operation", operation).
		Dur("latency", latency).
		Dur("threshold", am.slowCallThreshold).
		Msg("slow_sdk_call")
	return true
}

// FlagServiceStatus logs a non-2xx answer from an SDK service.
func (am *AlertManager) FlagServiceStatus(requestID, url string, statusCode int) {
	if am == nil {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Str("url", url).
		Int("status", statusCode).
		Msg("sdk_service_status")
}

// FlagServiceErrors logs an errors list returned by an SDK service.
func (am *AlertManager) FlagServiceErrors(requestID, operation string, count int) {
	if am == nil {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Str("operation", operation).
		Int("errors", count).
		Msg("sdk_service_errors")
}
