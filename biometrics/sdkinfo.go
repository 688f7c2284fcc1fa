package biometrics

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ProductOwner identifies who ships an SDK.
type ProductOwner struct {
	Organization string `json:"organization,omitempty"`
	Type         string `json:"type,omitempty"`
}

// SDKInfo describes the capabilities a backend reports from init.
type SDKInfo struct {
	APIVersion          string                           `json:"apiVersion,omitempty"`
	SDKVersion          string                           `json:"sdkVersion,omitempty"`
	SupportedModalities []Modality                       `json:"supportedModalities"`
	SupportedMethods    map[BiometricFunction][]Modality `json:"supportedMethods"`
	OtherInfo           map[string]string                `json:"otherInfo"`
	ProductOwner        *ProductOwner                    `json:"productOwner,omitempty"`
}

// UnmarshalJSON accepts otherInfo values of any JSON type. Strings are kept as
// is; numbers, booleans and nested values keep their JSON text.
func (s *SDKInfo) UnmarshalJSON(data []byte) error {
	type plain SDKInfo
	var v struct {
		*plain
		OtherInfo json.RawMessage `json:"otherInfo"`
	}
	v.plain = (*plain)(s)
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	other := gjson.ParseBytes(v.OtherInfo)
	switch {
	case len(v.OtherInfo) == 0 || other.Type == gjson.Null:
		s.OtherInfo = nil
	case other.IsObject():
		s.OtherInfo = make(map[string]string)
		other.ForEach(func(key, value gjson.Result) bool {
			if value.Type != gjson.Null {
				s.OtherInfo[key.String()] = value.String()
			}
			return true
		})
	default:
		return fmt.Errorf("sdk info otherInfo must be an object, got %s", other.Type)
	}
	return nil
}

// NewSDKInfo returns an SDKInfo with empty collections.
func NewSDKInfo(apiVersion, sdkVersion, organization, ownerType string) *SDKInfo {
	return &SDKInfo{
		APIVersion:          apiVersion,
		SDKVersion:          sdkVersion,
		SupportedModalities: []Modality{},
		SupportedMethods:    map[BiometricFunction][]Modality{},
		OtherInfo:           map[string]string{},
		ProductOwner:        &ProductOwner{Organization: organization, Type: ownerType},
	}
}

// AggregateSDKInfo merges the SDKInfo reported by several backends.
//
// The first entry supplies API version, SDK version and product owner. Other info
// and supported methods are merged from every entry, later entries winning on key
// collisions. Supported modalities are appended in first-seen order without
// duplicates. A nil or empty input yields nil.
func AggregateSDKInfo(infos []*SDKInfo) *SDKInfo {
	var base *SDKInfo
	for _, info := range infos {
		if info != nil {
			base = info
			break
		}
	}
	if base == nil {
		return nil
	}

	var organization, ownerType string
	if base.ProductOwner != nil {
		organization = base.ProductOwner.Organization
		ownerType = base.ProductOwner.Type
	}
	out := NewSDKInfo(base.APIVersion, base.SDKVersion, organization, ownerType)

	for _, info := range infos {
		if info == nil {
			continue
		}
		for k, v := range info.OtherInfo {
			out.OtherInfo[k] = v
		}
		for fn, modalities := range info.SupportedMethods {
			out.SupportedMethods[fn] = append([]Modality(nil), modalities...)
		}
		for _, m := range info.SupportedModalities {
			out.SupportedModalities = appendUnique(out.SupportedModalities, m)
		}
	}
	return out
}
