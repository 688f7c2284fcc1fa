package routing_test

import (
	"testing"

	"github.com/compresr/biosdk-client/biometrics"
	"github.com/compresr/biosdk-client/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultURL = "http://localhost:9099/biosdk-service"
	testURL    = "http://localhost:9098/biosdk-service"
)

func defaultAndTest(t *testing.T) *routing.Map {
	t.Helper()
	m, err := routing.Build(map[string]string{
		"format.url.default": defaultURL,
		"format.url.test":    testURL,
		"unrelated":          "ignored",
	}, "")
	require.NoError(t, err)
	return m
}

// =============================================================================
// BUILD TESTS
// =============================================================================

func TestBuild_NoServiceURL(t *testing.T) {
	_, err := routing.Build(map[string]string{"config.parameter.x": "1"}, "")
	require.ErrorIs(t, err, routing.ErrNoServiceURL)
	assert.Equal(t, "No valid sdk service url configured", err.Error())

	_, err = routing.Build(nil, "")
	require.ErrorIs(t, err, routing.ErrNoServiceURL)
}

func TestBuild_DefaultPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]string
		fallback string
		want     string
	}{
		{
			name:     "explicit default wins over fallback",
			params:   map[string]string{"format.url.default": defaultURL},
			fallback: "http://env",
			want:     defaultURL,
		},
		{
			name:     "fallback used when no default param",
			params:   map[string]string{"format.url.test": testURL},
			fallback: "http://env",
			want:     "http://env",
		},
		{
			name:   "smallest key promoted",
			params: map[string]string{"format.url.zeta": "http://z", "format.url.alpha": "http://a"},
			want:   "http://a",
		},
		{
			name:     "fallback alone is enough",
			params:   map[string]string{},
			fallback: "http://env",
			want:     "http://env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := routing.Build(tt.params, tt.fallback)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Default())
		})
	}
}

func TestBuild_TestOnlyMapGetsDefault(t *testing.T) {
	m, err := routing.Build(map[string]string{"format.url.test": testURL}, "")
	require.NoError(t, err)

	assert.Equal(t, testURL, m.Default())
	u, ok := m.Lookup("test")
	require.True(t, ok)
	assert.Equal(t, testURL, u)
	assert.Equal(t, []string{testURL}, m.URLs())
}

func TestMap_EntriesAndURLs(t *testing.T) {
	m := defaultAndTest(t)

	assert.Equal(t, []routing.Entry{
		{Key: "default", URL: defaultURL},
		{Key: "test", URL: testURL},
	}, m.Entries())
	assert.Equal(t, []string{defaultURL, testURL}, m.URLs())
}

// =============================================================================
// RESOLVE TESTS
// =============================================================================

func TestResolve(t *testing.T) {
	m := defaultAndTest(t)

	tests := []struct {
		name     string
		modality biometrics.Modality
		flags    map[string]string
		want     string
	}{
		{name: "nil flags", modality: biometrics.Face, flags: nil, want: defaultURL},
		{name: "no modality", modality: "", flags: map[string]string{"FACE.format": "test"}, want: defaultURL},
		{name: "matching flag", modality: biometrics.Face, flags: map[string]string{"face.format": "TEST"}, want: testURL},
		{name: "flag for another modality", modality: biometrics.Iris, flags: map[string]string{"face.format": "test"}, want: defaultURL},
		{name: "unknown format", modality: biometrics.Face, flags: map[string]string{"FACE.format": "missing"}, want: defaultURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Resolve(tt.modality, tt.flags)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, m.Resolve(tt.modality, tt.flags))
		})
	}
}

func TestResolveAny(t *testing.T) {
	m := defaultAndTest(t)

	tests := []struct {
		name       string
		modalities []biometrics.Modality
		flags      map[string]string
		want       string
	}{
		{
			name:       "first modality wins",
			modalities: []biometrics.Modality{biometrics.Iris, biometrics.Face},
			flags:      map[string]string{"iris.format": "test"},
			want:       testURL,
		},
		{
			name:  "empty list scans flags",
			flags: map[string]string{"Finger.Format": "test"},
			want:  testURL,
		},
		{
			name:  "scan ignores keys without a modality",
			flags: map[string]string{"other": "test"},
			want:  defaultURL,
		},
		{
			name:  "nil flags",
			flags: nil,
			want:  defaultURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ResolveAny(tt.modalities, tt.flags))
		})
	}
}

func TestParameters(t *testing.T) {
	got := routing.Parameters(map[string]string{
		"config.parameter.restTemplate-total-max-connections": "50",
		"format.url.default": defaultURL,
	})

	assert.Equal(t, map[string]string{"restTemplate-total-max-connections": "50"}, got)
}
