package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/compresr/biosdk-client/biometrics"
)

const nullBodySentinel = "Response body is null"

var (
	// ErrNullBody is returned for an empty body or the literal null-body sentinel.
	ErrNullBody = errors.New(nullBodySentinel) //nolint:staticcheck // matches the service sentinel text

	// ErrMissingResponse is returned by DecodeLegacy when the body has no response field.
	ErrMissingResponse = errors.New("response field missing")
)

// Decode parses a response envelope of either shape into a typed Response.
//
// A non-empty errors list fails the decode with ServiceErrors. The status code is
// nil unless the service reported one.
func Decode[T any](body []byte) (biometrics.Response[T], error) {
	var out biometrics.Response[T]

	root, err := parse(body)
	if err != nil {
		return out, err
	}
	if err := checkErrorList(root.Get("errors")); err != nil {
		return out, err
	}

	inner := root.Get("response")
	status := root
	payload := inner
	if isWrapper(root, inner) {
		status = inner
		payload = inner.Get("response")
	}

	if code := status.Get("statusCode"); code.Type == gjson.Number {
		v := int(code.Int())
		out.StatusCode = &v
	}
	if msg := status.Get("statusMessage"); msg.Exists() && msg.Type != gjson.Null {
		out.StatusMessage = msg.String()
	}

	if err := unmarshalPayload(payload, &out.Response); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeLegacy reads the root response field directly, without status fields or
// nested-shape handling. Used by the legacy convert-format operation.
func DecodeLegacy[T any](body []byte) (T, error) {
	var out T

	root, err := parse(body)
	if err != nil {
		return out, err
	}
	if err := checkErrorList(root.Get("errors")); err != nil {
		return out, err
	}

	payload := root.Get("response")
	if !payload.Exists() {
		return out, ErrMissingResponse
	}
	if err := unmarshalPayload(payload, &out); err != nil {
		return out, err
	}
	return out, nil
}

func parse(body []byte) (gjson.Result, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || strings.EqualFold(trimmed, nullBodySentinel) {
		return gjson.Result{}, ErrNullBody
	}
	if !gjson.Valid(trimmed) {
		return gjson.Result{}, errors.New("failed to parse response body: invalid JSON")
	}
	return gjson.Parse(trimmed), nil
}

// isWrapper reports whether the root response field is a status wrapper rather
// than the payload itself. A root that carries its own status fields is the flat
// shape, so its response field is always the payload even when the payload has a
// statusCode key of its own.
func isWrapper(root, inner gjson.Result) bool {
	if root.Get("statusCode").Exists() || root.Get("statusMessage").Exists() {
		return false
	}
	if !inner.IsObject() {
		return false
	}
	for _, key := range []string{"response", "statusCode", "statusMessage"} {
		if inner.Get(key).Exists() {
			return true
		}
	}
	return false
}

func checkErrorList(list gjson.Result) error {
	if !list.IsArray() {
		return nil
	}
	var errs []*ServiceError
	for _, item := range list.Array() {
		if item.Type == gjson.Null {
			continue
		}
		errs = append(errs, &ServiceError{
			Code:    item.Get("code").String(),
			Message: item.Get("message").String(),
		})
	}
	return CheckErrors(errs)
}

func unmarshalPayload(payload gjson.Result, v any) error {
	if !payload.Exists() || payload.Type == gjson.Null {
		return nil
	}
	if err := json.Unmarshal([]byte(payload.Raw), v); err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}
	return nil
}
