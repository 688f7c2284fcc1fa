// Routing maps biometric formats to SDK service base URLs.
//
// DESIGN: The map is built once from init parameters and never mutated after:
//  1. format.url.<name> params → entry <name>
//  2. no "default" entry      → fallback (config/env) → smallest registered key
//  3. empty map               → ErrNoServiceURL
//
// Lookups are case-insensitive on both the flag key ("<MODALITY>.format") and the
// format name. Anything unresolved goes to the default entry.
package routing

import (
	"errors"
	"sort"
	"strings"

	"github.com/compresr/biosdk-client/biometrics"
)

const (
	// FormatURLPrefix marks init params that register a service URL.
	FormatURLPrefix = "format.url."
	// ParameterPrefix marks init params that overlay client configuration.
	ParameterPrefix = "config.parameter."
	// DefaultKey is the map entry used when no format matches.
	DefaultKey = "default"

	formatSuffix = ".format"
)

// ErrNoServiceURL is returned by Build when no service URL can be determined.
var ErrNoServiceURL = errors.New("No valid sdk service url configured") //nolint:staticcheck // message is part of the client contract

// Map is an immutable format → base URL table.
type Map struct {
	urls map[string]string
	keys []string
}

// Entry is one format → URL pair.
type Entry struct {
	Key string
	URL string
}

// Build extracts format.url.* entries from params. fallbackDefault is used when
// params carry no default entry; pass "" when none is configured.
func Build(params map[string]string, fallbackDefault string) (*Map, error) {
	urls := make(map[string]string)
	for k, v := range params {
		idx := strings.Index(k, FormatURLPrefix)
		if idx < 0 {
			continue
		}
		urls[k[idx+len(FormatURLPrefix):]] = v
	}

	if _, ok := urls[DefaultKey]; !ok && fallbackDefault != "" {
		urls[DefaultKey] = fallbackDefault
	}

	if len(urls) == 0 {
		return nil, ErrNoServiceURL
	}

	keys := make([]string, 0, len(urls))
	for k := range urls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if _, ok := urls[DefaultKey]; !ok {
		urls[DefaultKey] = urls[keys[0]]
		keys = append(keys, DefaultKey)
		sort.Strings(keys)
	}

	return &Map{urls: urls, keys: keys}, nil
}

// Default returns the default base URL.
func (m *Map) Default() string {
	return m.urls[DefaultKey]
}

// Lookup finds a URL by format name, ignoring case.
func (m *Map) Lookup(format string) (string, bool) {
	if u, ok := m.urls[format]; ok {
		return u, true
	}
	for _, k := range m.keys {
		if strings.EqualFold(k, format) {
			return m.urls[k], true
		}
	}
	return "", false
}

// Resolve picks the URL for a single modality. A flag "<MODALITY>.format" (any case)
// names the format to look up; otherwise the default URL is returned.
func (m *Map) Resolve(modality biometrics.Modality, flags map[string]string) string {
	if modality == "" || flags == nil {
		return m.Default()
	}

	format, ok := flagValue(flags, string(modality)+formatSuffix)
	if !ok {
		return m.Default()
	}
	if u, ok := m.Lookup(format); ok {
		return u
	}
	return m.Default()
}

// flagValue prefers an exact key match over a case-insensitive one.
func flagValue(flags map[string]string, key string) (string, bool) {
	if v, ok := flags[key]; ok {
		return v, true
	}
	for k, v := range flags {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// scanOrder is the priority used when no modality is given explicitly.
var scanOrder = []biometrics.Modality{biometrics.Finger, biometrics.Iris, biometrics.Face}

// ResolveAny picks the URL for a list of modalities. A non-empty list resolves its
// first entry. An empty list scans the flag keys in sorted order for one mentioning
// FINGER, IRIS or FACE (in that priority per key) and resolves that modality.
func (m *Map) ResolveAny(modalities []biometrics.Modality, flags map[string]string) string {
	if len(modalities) > 0 {
		return m.Resolve(modalities[0], flags)
	}

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		upper := strings.ToUpper(k)
		for _, modality := range scanOrder {
			if strings.Contains(upper, string(modality)) {
				return m.Resolve(modality, flags)
			}
		}
	}
	return m.Default()
}

// Entries returns every entry in key order.
func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry{Key: k, URL: m.urls[k]})
	}
	return out
}

// URLs returns the distinct base URLs, default first then in key order.
func (m *Map) URLs() []string {
	seen := make(map[string]bool, len(m.urls))
	out := []string{m.Default()}
	seen[m.Default()] = true
	for _, k := range m.keys {
		u := m.urls[k]
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Parameters extracts config.parameter.* entries with the prefix stripped.
func Parameters(params map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range params {
		idx := strings.Index(k, ParameterPrefix)
		if idx < 0 {
			continue
		}
		out[k[idx+len(ParameterPrefix):]] = v
	}
	return out
}
