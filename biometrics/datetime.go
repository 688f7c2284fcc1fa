package biometrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// wireTimeLayout is the timestamp layout written to SDK services.
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// LocalDateTime is a zone-less timestamp as produced by SDK services. It accepts
// ISO strings with or without an offset, the [y,m,d,h,mi,s,nano] array form and the
// {"date":{...},"time":{...}} object form. Values without an offset are read as UTC.
type LocalDateTime struct {
	time.Time
}

// NewLocalDateTime wraps t.
func NewLocalDateTime(t time.Time) *LocalDateTime {
	return &LocalDateTime{Time: t.UTC()}
}

// MarshalJSON writes the wire layout in UTC.
func (d LocalDateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(wireTimeLayout))
}

// UnmarshalJSON accepts every form described on LocalDateTime.
func (d *LocalDateTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, layout := range parseLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				d.Time = t.UTC()
				return nil
			}
		}
		return fmt.Errorf("unsupported timestamp %q", s)

	case '[':
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("invalid timestamp array: %w", err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("timestamp array needs at least year, month, day: %s", raw)
		}
		parts = append(parts, make([]int, 7-min(len(parts), 7))...)
		d.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
		return nil

	case '{':
		var obj struct {
			Date struct {
				Year  int `json:"year"`
				Month int `json:"month"`
				Day   int `json:"day"`
			} `json:"date"`
			Time struct {
				Hour   int `json:"hour"`
				Minute int `json:"minute"`
				Second int `json:"second"`
				Nano   int `json:"nano"`
			} `json:"time"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("invalid timestamp object: %w", err)
		}
		d.Time = time.Date(obj.Date.Year, time.Month(obj.Date.Month), obj.Date.Day,
			obj.Time.Hour, obj.Time.Minute, obj.Time.Second, obj.Time.Nano, time.UTC)
		return nil
	}

	return fmt.Errorf("unsupported timestamp %s", raw)
}
