// Envelope is the request/response wrapper spoken by SDK services.
//
// DESIGN: Requests carry the capability payload as base64 JSON:
//
//	{"version": "1.0", "request": "<base64(json(payload))>"}
//
// Responses come in two shapes, both accepted by Decode:
//
//	nested: {"response": {"statusCode": 200, "statusMessage": "OK", "response": {...}}, "errors": []}
//	flat:   {"statusCode": 200, "statusMessage": "OK", "response": {...}, "errors": []}
//
// Field access goes through gjson so either shape is read without intermediate structs.
//
// FILES:
//   - envelope.go: request encode/decode
//   - decode.go:   response decode (two shapes, legacy)
//   - errors.go:   ServiceError aggregation
//   - requests.go: capability request payloads
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Version is the envelope version sent with every request.
const Version = "1.0"

// Request is the outbound envelope.
type Request struct {
	Version string `json:"version"`
	Request string `json:"request"`
}

// Encode wraps payload in a request envelope.
func Encode(payload any) (Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return Request{
		Version: Version,
		Request: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Marshal renders the envelope as a JSON body.
func (r Request) Marshal() ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "version", r.Version)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "request", r.Request)
}

// ErrInvalidEnvelope is returned by DecodeRequest for bodies that are not request envelopes.
var ErrInvalidEnvelope = errors.New("invalid request envelope")

// DecodeRequest reads a request envelope body and unmarshals its payload into v.
// It returns the envelope version.
func DecodeRequest(body []byte, v any) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: body is not JSON", ErrInvalidEnvelope)
	}
	encoded := gjson.GetBytes(body, "request")
	if encoded.Type != gjson.String {
		return "", fmt.Errorf("%w: missing request field", ErrInvalidEnvelope)
	}

	data, err := base64.StdEncoding.DecodeString(encoded.Str)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return "", fmt.Errorf("failed to unmarshal request payload: %w", err)
	}
	return gjson.GetBytes(body, "version").String(), nil
}
