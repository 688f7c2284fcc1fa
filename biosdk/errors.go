package biosdk

import (
	"errors"

	"github.com/compresr/biosdk-client/biometrics"
)

// ErrNotInitialized is returned by capability calls made before a successful Init.
var ErrNotInitialized = errors.New("biosdk client not initialized")

// Error is returned by every Client operation. Code is the UNKNOWN_ERROR status
// code ("500") for all failures; Err carries the underlying cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError converts err into an *Error, leaving existing *Error values untouched.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return err
	}
	return &Error{
		Code:    biometrics.StatusUnknownError.CodeString(),
		Message: err.Error(),
		Err:     err,
	}
}
