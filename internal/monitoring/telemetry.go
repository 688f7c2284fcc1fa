// Package monitoring - telemetry.go records SDK calls to a JSONL file.
//
// DESIGN: Tracker appends one CallEvent per finished operation (one JSON
// object per line) right after the call, so the file can be tailed. The
// file and its directory are created when the tracker is built.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/compresr/biosdk-client/internal/config"
)

// CallEvent captures one finished SDK operation.
type CallEvent struct {
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
	Operation  string    `json:"operation"`
	URL        string    `json:"url,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Tracker writes call events to the call log. A nil *Tracker records nothing.
type Tracker struct {
	path   string
	logger zerolog.Logger
	count  int
	mu     sync.Mutex
}

// NewTracker creates a call log tracker. It returns nil when the call log is disabled.
func NewTracker(cfg config.CallLogConfig, logger zerolog.Logger) (*Tracker, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return &Tracker{path: cfg.Path, logger: logger}, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// RecordCall appends a call event. Write failures are logged, never returned.
func (t *Tracker) RecordCall(event *CallEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := appendJSONL(t.path, event); err != nil {
		t.logger.Error().Err(err).Str("path", t.path).Msg("call log: failed to write event")
		return
	}
	t.count++
}

// Close logs a summary of the recorded events.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count > 0 {
		t.logger.Info().
			Str("path", t.path).
			Int("events", t.count).
			Msg("call log: session complete")
	}
	return nil
}
