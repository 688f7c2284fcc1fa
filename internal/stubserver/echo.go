package stubserver

import (
	"bytes"
	"context"
	"slices"

	"github.com/compresr/biosdk-client/biometrics"
	"github.com/compresr/biosdk-client/internal/envelope"
)

// EchoBackend answers deterministically from the request contents.
//
// Quality is 90 for a requested modality present in the sample, 0 otherwise.
// Match compares segment data byte-for-byte per modality. Extract, segment and
// convert return the sample filtered to the requested modalities.
type EchoBackend struct {
	// Name is reported in SDKInfo.OtherInfo["backend"].
	Name string
	// Modalities reported as supported; empty means FINGER, FACE, IRIS.
	Modalities []biometrics.Modality
}

var _ Backend = (*EchoBackend)(nil)

func (b *EchoBackend) Init(_ context.Context, req *envelope.InitRequest) (*biometrics.SDKInfo, error) {
	modalities := b.Modalities
	if len(modalities) == 0 {
		modalities = []biometrics.Modality{biometrics.Finger, biometrics.Face, biometrics.Iris}
	}
	name := b.Name
	if name == "" {
		name = "echo"
	}

	info := biometrics.NewSDKInfo("0.9", "1.0.0", "MOSIP", name)
	info.SupportedModalities = slices.Clone(modalities)
	for _, fn := range []biometrics.BiometricFunction{
		biometrics.FunctionQualityCheck,
		biometrics.FunctionMatch,
		biometrics.FunctionExtract,
		biometrics.FunctionConvertFormat,
		biometrics.FunctionSegment,
	} {
		info.SupportedMethods[fn] = slices.Clone(modalities)
	}
	info.OtherInfo["backend"] = name
	if v, ok := req.InitParams["echo"]; ok {
		info.OtherInfo["echo"] = v
	}
	return info, nil
}

func (b *EchoBackend) CheckQuality(_ context.Context, req *envelope.CheckQualityRequest) (*biometrics.QualityCheck, error) {
	if req.Sample == nil {
		return nil, envelope.ServiceErrors{{Code: "402", Message: "Missing Input Parameter - sample"}}
	}
	present := req.Sample.Modalities()
	out := &biometrics.QualityCheck{Scores: make(map[biometrics.Modality]biometrics.QualityScore)}
	for _, m := range req.ModalitiesToCheck {
		if slices.Contains(present, m) {
			out.Scores[m] = biometrics.QualityScore{Score: 90}
		} else {
			out.Scores[m] = biometrics.QualityScore{Score: 0, Errors: []string{"modality not present in sample"}}
		}
	}
	return out, nil
}

func (b *EchoBackend) Match(_ context.Context, req *envelope.MatchRequest) ([]biometrics.MatchDecision, error) {
	if req.Sample == nil {
		return nil, envelope.ServiceErrors{{Code: "402", Message: "Missing Input Parameter - sample"}}
	}
	out := make([]biometrics.MatchDecision, 0, len(req.Gallery))
	for i, candidate := range req.Gallery {
		decision := biometrics.MatchDecision{
			GalleryIndex: i,
			Decisions:    make(map[biometrics.Modality]biometrics.Decision),
		}
		for _, m := range req.ModalitiesToMatch {
			match := biometrics.NotMatched
			if sameData(segmentData(req.Sample, m), segmentData(candidate, m)) {
				match = biometrics.Matched
			}
			decision.Decisions[m] = biometrics.Decision{Match: match}
		}
		out = append(out, decision)
	}
	return out, nil
}

func (b *EchoBackend) ExtractTemplate(_ context.Context, req *envelope.ExtractTemplateRequest) (*biometrics.BiometricRecord, error) {
	return filterRecord(req.Sample, req.ModalitiesToExtract), nil
}

func (b *EchoBackend) Segment(_ context.Context, req *envelope.SegmentRequest) (*biometrics.BiometricRecord, error) {
	return filterRecord(req.Sample, req.ModalitiesToSegment), nil
}

func (b *EchoBackend) ConvertFormat(_ context.Context, req *envelope.ConvertFormatRequest) (*biometrics.BiometricRecord, error) {
	out := filterRecord(req.Sample, req.ModalitiesToConvert)
	if out == nil {
		return nil, nil
	}
	if out.Others == nil {
		out.Others = make(map[string]string)
	}
	out.Others["sourceFormat"] = req.SourceFormat
	out.Others["targetFormat"] = req.TargetFormat
	return out, nil
}

// filterRecord keeps the segments of the given modalities; empty keeps all.
func filterRecord(r *biometrics.BiometricRecord, modalities []biometrics.Modality) *biometrics.BiometricRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Segments = nil
	for _, seg := range r.Segments {
		if len(modalities) == 0 || (seg.BdbInfo != nil && containsAny(seg.BdbInfo.Type, modalities)) {
			out.Segments = append(out.Segments, seg)
		}
	}
	if out.Segments == nil {
		out.Segments = []biometrics.BIR{}
	}
	return &out
}

func segmentData(r *biometrics.BiometricRecord, m biometrics.Modality) [][]byte {
	if r == nil {
		return nil
	}
	var out [][]byte
	for _, seg := range r.Segments {
		if seg.BdbInfo != nil && slices.Contains(seg.BdbInfo.Type, m) {
			out = append(out, seg.Bdb)
		}
	}
	return out
}

// sameData reports whether any non-empty block of a appears in b.
func sameData(a, b [][]byte) bool {
	for _, x := range a {
		if len(x) == 0 {
			continue
		}
		for _, y := range b {
			if bytes.Equal(x, y) {
				return true
			}
		}
	}
	return false
}

func containsAny(have, want []biometrics.Modality) bool {
	for _, m := range want {
		if slices.Contains(have, m) {
			return true
		}
	}
	return false
}
