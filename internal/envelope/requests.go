package envelope

import "github.com/compresr/biosdk-client/biometrics"

// Capability request payloads. Each is built per call and encoded into the
// request field of the envelope.

// InitRequest is sent to /init.
type InitRequest struct {
	InitParams map[string]string `json:"initParams"`
}

// CheckQualityRequest is sent to /check-quality.
type CheckQualityRequest struct {
	Sample            *biometrics.BiometricRecord `json:"sample"`
	ModalitiesToCheck []biometrics.Modality       `json:"modalitiesToCheck"`
	Flags             map[string]string           `json:"flags"`
}

// MatchRequest is sent to /match.
type MatchRequest struct {
	Sample            *biometrics.BiometricRecord   `json:"sample"`
	Gallery           []*biometrics.BiometricRecord `json:"gallery"`
	ModalitiesToMatch []biometrics.Modality         `json:"modalitiesToMatch"`
	Flags             map[string]string             `json:"flags"`
}

// ExtractTemplateRequest is sent to /extract-template.
type ExtractTemplateRequest struct {
	Sample              *biometrics.BiometricRecord `json:"sample"`
	ModalitiesToExtract []biometrics.Modality       `json:"modalitiesToExtract"`
	Flags               map[string]string           `json:"flags"`
}

// SegmentRequest is sent to /segment.
type SegmentRequest struct {
	Sample              *biometrics.BiometricRecord `json:"sample"`
	ModalitiesToSegment []biometrics.Modality       `json:"modalitiesToSegment"`
	Flags               map[string]string           `json:"flags"`
}

// ConvertFormatRequest is sent to /convert-format.
type ConvertFormatRequest struct {
	Sample              *biometrics.BiometricRecord `json:"sample"`
	SourceFormat        string                      `json:"sourceFormat"`
	TargetFormat        string                      `json:"targetFormat"`
	SourceParams        map[string]string           `json:"sourceParams"`
	TargetParams        map[string]string           `json:"targetParams"`
	ModalitiesToConvert []biometrics.Modality       `json:"modalitiesToConvert"`
}

// Service paths, relative to a base URL.
const (
	PathInit            = "/init"
	PathCheckQuality    = "/check-quality"
	PathMatch           = "/match"
	PathExtractTemplate = "/extract-template"
	PathSegment         = "/segment"
	PathConvertFormat   = "/convert-format"
)
