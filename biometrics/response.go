package biometrics

import "strconv"

// Response is the typed result of a capability call. StatusCode is nil when the
// service did not report a numeric status.
type Response[T any] struct {
	StatusCode    *int   `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Response      T      `json:"response"`
}

// ResponseStatus enumerates the status codes used by SDK clients and services.
type ResponseStatus int

const (
	StatusSuccess            ResponseStatus = 200
	StatusInvalidInput       ResponseStatus = 401
	StatusMissingInput       ResponseStatus = 402
	StatusQualityCheckFailed ResponseStatus = 403
	StatusPoorDataQuality    ResponseStatus = 406
	StatusUnknownError       ResponseStatus = 500
)

var statusMessages = map[ResponseStatus]string{
	StatusSuccess:            "OK",
	StatusInvalidInput:       "Invalid Input Parameter - %s",
	StatusMissingInput:       "Missing Input Parameter - %s",
	StatusQualityCheckFailed: "Quality check of Biometric data failed",
	StatusPoorDataQuality:    "Data provided is of poor quality",
	StatusUnknownError:       "UNKNOWN_ERROR",
}

// Code returns the numeric status.
func (s ResponseStatus) Code() int { return int(s) }

// CodeString returns the status code as a decimal string, the form used for error codes.
func (s ResponseStatus) CodeString() string { return strconv.Itoa(int(s)) }

// Message returns the status message. Some messages are format strings taking the
// offending parameter name.
func (s ResponseStatus) Message() string { return statusMessages[s] }
