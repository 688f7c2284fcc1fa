// Package biometrics defines the value types exchanged with a biometric SDK service.
//
// DESIGN: These are the in-memory results the caller works with. JSON tags follow
// the SDK service wire names (camelCase) so the same structs are used to encode
// capability requests and to decode envelope payloads.
//
// FILES:
//   - types.go:    Modality, BiometricFunction, records, quality and match results
//   - datetime.go: LocalDateTime, tolerant of the timestamp forms services emit
//   - sdkinfo.go:  SDKInfo and aggregation across backends
//   - response.go: Response[T] and ResponseStatus
package biometrics

import "strings"

// =============================================================================
// MODALITIES
// =============================================================================

// Modality is a biometric type such as finger, iris or face.
type Modality string

const (
	Finger         Modality = "FINGER"
	Face           Modality = "FACE"
	Iris           Modality = "IRIS"
	Voice          Modality = "VOICE"
	Signature      Modality = "SIGNATURE"
	Keystroke      Modality = "KEYSTROKE"
	Gait           Modality = "GAIT"
	DNA            Modality = "DNA"
	ExceptionPhoto Modality = "EXCEPTION_PHOTO"
)

// AllModalities lists every known modality.
var AllModalities = []Modality{Finger, Face, Iris, Voice, Signature, Keystroke, Gait, DNA, ExceptionPhoto}

// String returns the modality name.
func (m Modality) String() string { return string(m) }

// ParseModality matches a modality name case-insensitively.
func ParseModality(s string) (Modality, bool) {
	for _, m := range AllModalities {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return "", false
}

// BiometricFunction is a capability a backend can advertise in SDKInfo.
type BiometricFunction string

const (
	FunctionQualityCheck  BiometricFunction = "QUALITY_CHECK"
	FunctionMatch         BiometricFunction = "MATCH"
	FunctionExtract       BiometricFunction = "EXTRACT"
	FunctionConvertFormat BiometricFunction = "CONVERT_FORMAT"
	FunctionSegment       BiometricFunction = "SEGMENT"
)

// =============================================================================
// RECORDS
// =============================================================================

// BiometricRecord is a CBEFF style container of biometric segments.
type BiometricRecord struct {
	Version      *VersionType      `json:"version,omitempty"`
	CbeffVersion *VersionType      `json:"cbeffversion,omitempty"`
	BirInfo      *BIRInfo          `json:"birInfo,omitempty"`
	Segments     []BIR             `json:"segments"`
	Others       map[string]string `json:"others,omitempty"`
}

// Modalities returns the distinct modalities present in the record's segments,
// in first-seen order.
func (r *BiometricRecord) Modalities() []Modality {
	if r == nil {
		return nil
	}
	var out []Modality
	for _, seg := range r.Segments {
		if seg.BdbInfo == nil {
			continue
		}
		for _, m := range seg.BdbInfo.Type {
			out = appendUnique(out, m)
		}
	}
	return out
}

// VersionType is a major/minor version pair.
type VersionType struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// BIRInfo describes a biometric information record.
type BIRInfo struct {
	Creator        string         `json:"creator,omitempty"`
	Index          string         `json:"index,omitempty"`
	Payload        []byte         `json:"payload,omitempty"`
	Integrity      bool           `json:"integrity"`
	CreationDate   *LocalDateTime `json:"creationDate,omitempty"`
	NotValidBefore *LocalDateTime `json:"notValidBefore,omitempty"`
	NotValidAfter  *LocalDateTime `json:"notValidAfter,omitempty"`
}

// BIR is a single biometric segment. Bdb carries the biometric data block and
// travels base64 encoded.
type BIR struct {
	Version      *VersionType      `json:"version,omitempty"`
	CbeffVersion *VersionType      `json:"cbeffversion,omitempty"`
	BirInfo      *BIRInfo          `json:"birInfo,omitempty"`
	BdbInfo      *BDBInfo          `json:"bdbInfo,omitempty"`
	Bdb          []byte            `json:"bdb,omitempty"`
	Sb           []byte            `json:"sb,omitempty"`
	Others       map[string]string `json:"others,omitempty"`
}

// BDBInfo describes the biometric data block of a segment.
type BDBInfo struct {
	Index        string          `json:"index,omitempty"`
	Format       *RegistryIDInfo `json:"format,omitempty"`
	Encryption   bool            `json:"encryption"`
	CreationDate *LocalDateTime  `json:"creationDate,omitempty"`
	Type         []Modality      `json:"type,omitempty"`
	Subtype      []string        `json:"subtype,omitempty"`
	Level        string          `json:"level,omitempty"`
	Purpose      string          `json:"purpose,omitempty"`
	Quality      *QualityType    `json:"quality,omitempty"`
}

// RegistryIDInfo identifies a format by organization and type.
type RegistryIDInfo struct {
	Organization string `json:"organization"`
	Type         string `json:"type"`
}

// QualityType is the quality block attached to a segment.
type QualityType struct {
	Algorithm                *RegistryIDInfo `json:"algorithm,omitempty"`
	Score                    int64           `json:"score"`
	QualityCalculationFailed string          `json:"qualityCalculationFailed,omitempty"`
}

// =============================================================================
// RESULTS
// =============================================================================

// QualityScore is the score computed for one modality.
type QualityScore struct {
	Score         float32           `json:"score"`
	Errors        []string          `json:"errors,omitempty"`
	AnalyticsInfo map[string]string `json:"analyticsInfo,omitempty"`
}

// QualityCheck holds per-modality quality scores.
type QualityCheck struct {
	Scores map[Modality]QualityScore `json:"scores"`
}

// Match is the outcome of matching one modality.
type Match string

const (
	Matched    Match = "MATCHED"
	NotMatched Match = "NOT_MATCHED"
	MatchError Match = "ERROR"
)

// Decision is the match decision for one modality.
type Decision struct {
	Match         Match             `json:"match"`
	Errors        []string          `json:"errors,omitempty"`
	AnalyticsInfo map[string]string `json:"analyticsInfo,omitempty"`
}

// MatchDecision is the result of matching the sample against one gallery entry.
type MatchDecision struct {
	GalleryIndex  int                   `json:"galleryIndex"`
	Decisions     map[Modality]Decision `json:"decisions"`
	AnalyticsInfo map[string]string     `json:"analyticsInfo,omitempty"`
}

func appendUnique(list []Modality, m Modality) []Modality {
	for _, existing := range list {
		if existing == m {
			return list
		}
	}
	return append(list, m)
}
