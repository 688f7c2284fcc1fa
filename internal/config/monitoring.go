// Monitoring configuration - logging, alert and call log settings.
//
// DESIGN: Library callers usually inject their own logger; these settings are
// used by the CLI and by callers that want the client to build one.
package config

import "time"

// DefaultSlowCallThreshold is the latency above which a call is flagged.
const DefaultSlowCallThreshold = 5 * time.Second

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"` // trace, debug, info, warn, error
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`              // json, console
	Output string `yaml:"output"`                                                       // stdout, stderr, or file path
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
	if l.Output == "" {
		l.Output = "stderr"
	}
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	SlowCallThreshold time.Duration `yaml:"slow_call_threshold" validate:"gte=0"`
}

func (a *AlertConfig) applyDefaults() {
	if a.SlowCallThreshold == 0 {
		a.SlowCallThreshold = DefaultSlowCallThreshold
	}
}

// CallLogConfig enables the JSONL log of SDK calls.
type CallLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}
