package biosdk

import (
	"context"

	"github.com/compresr/biosdk-client/biometrics"
	"github.com/compresr/biosdk-client/internal/envelope"
	"github.com/compresr/biosdk-client/internal/routing"
)

// Operation names used for spans, metrics and logs.
const (
	opCheckQuality    = "check_quality"
	opMatch           = "match"
	opExtractTemplate = "extract_template"
	opSegment         = "segment"
	opConvertFormat   = "convert_format"
	opConvertFormatV2 = "convert_format_v2"
)

// CheckQuality scores the sample for each requested modality. The service is
// chosen from the first modality and its "<MODALITY>.format" flag.
func (c *Client) CheckQuality(ctx context.Context, sample *biometrics.BiometricRecord, modalities []biometrics.Modality, flags map[string]string) (*biometrics.Response[*biometrics.QualityCheck], error) {
	return capability[*biometrics.QualityCheck](ctx, c, opCheckQuality, envelope.PathCheckQuality,
		func(m *routing.Map) string { return m.Resolve(first(modalities), flags) },
		envelope.CheckQualityRequest{Sample: sample, ModalitiesToCheck: modalities, Flags: flags})
}

// Match compares the sample against every gallery record.
func (c *Client) Match(ctx context.Context, sample *biometrics.BiometricRecord, gallery []*biometrics.BiometricRecord, modalities []biometrics.Modality, flags map[string]string) (*biometrics.Response[[]biometrics.MatchDecision], error) {
	return capability[[]biometrics.MatchDecision](ctx, c, opMatch, envelope.PathMatch,
		func(m *routing.Map) string { return m.Resolve(first(modalities), flags) },
		envelope.MatchRequest{Sample: sample, Gallery: gallery, ModalitiesToMatch: modalities, Flags: flags})
}

// ExtractTemplate extracts templates for the requested modalities. With no
// modalities, the service is chosen from the first flag key naming FINGER, IRIS or FACE.
func (c *Client) ExtractTemplate(ctx context.Context, sample *biometrics.BiometricRecord, modalities []biometrics.Modality, flags map[string]string) (*biometrics.Response[*biometrics.BiometricRecord], error) {
	return capability[*biometrics.BiometricRecord](ctx, c, opExtractTemplate, envelope.PathExtractTemplate,
		func(m *routing.Map) string { return m.ResolveAny(modalities, flags) },
		envelope.ExtractTemplateRequest{Sample: sample, ModalitiesToExtract: modalities, Flags: flags})
}

// Segment splits the sample into segments for the requested modalities.
func (c *Client) Segment(ctx context.Context, sample *biometrics.BiometricRecord, modalities []biometrics.Modality, flags map[string]string) (*biometrics.Response[*biometrics.BiometricRecord], error) {
	return capability[*biometrics.BiometricRecord](ctx, c, opSegment, envelope.PathSegment,
		func(m *routing.Map) string { return m.Resolve(first(modalities), flags) },
		envelope.SegmentRequest{Sample: sample, ModalitiesToSegment: modalities, Flags: flags})
}

// ConvertFormatRequest holds the arguments of a format conversion.
type ConvertFormatRequest struct {
	Sample       *biometrics.BiometricRecord
	SourceFormat string
	TargetFormat string
	SourceParams map[string]string
	TargetParams map[string]string
	Modalities   []biometrics.Modality
}

func (r ConvertFormatRequest) payload() envelope.ConvertFormatRequest {
	return envelope.ConvertFormatRequest{
		Sample:              r.Sample,
		SourceFormat:        r.SourceFormat,
		TargetFormat:        r.TargetFormat,
		SourceParams:        r.SourceParams,
		TargetParams:        r.TargetParams,
		ModalitiesToConvert: r.Modalities,
	}
}

// ConvertFormat converts the sample on the default service and returns only the
// converted record. The service response is read without status fields.
func (c *Client) ConvertFormat(ctx context.Context, req ConvertFormatRequest) (record *biometrics.BiometricRecord, err error) {
	ctx, finish := c.begin(ctx, opConvertFormat)
	defer func() { err = finish(err) }()

	m, tr, err := c.ready()
	if err != nil {
		return nil, err
	}
	body, err := marshalEnvelope(req.payload())
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, tr, m.Default()+envelope.PathConvertFormat, body)
	if err != nil {
		return nil, err
	}
	return envelope.DecodeLegacy[*biometrics.BiometricRecord](resp.Body)
}

// ConvertFormatV2 converts the sample on the default service and returns the
// full typed response.
func (c *Client) ConvertFormatV2(ctx context.Context, req ConvertFormatRequest) (*biometrics.Response[*biometrics.BiometricRecord], error) {
	return capability[*biometrics.BiometricRecord](ctx, c, opConvertFormatV2, envelope.PathConvertFormat,
		(*routing.Map).Default, req.payload())
}

// capability runs one capability call: resolve the service URL, post the envelope
// and decode the response.
func capability[T any](ctx context.Context, c *Client, operation, path string, resolve func(*routing.Map) string, payload any) (result *biometrics.Response[T], err error) {
	ctx, finish := c.begin(ctx, operation)
	defer func() { err = finish(err) }()

	m, tr, err := c.ready()
	if err != nil {
		return nil, err
	}

	resp, err := post[T](ctx, c, tr, resolve(m)+path, payload)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func first(modalities []biometrics.Modality) biometrics.Modality {
	if len(modalities) == 0 {
		return ""
	}
	return modalities[0]
}
