package envelope

import (
	"fmt"
	"strings"
)

// ServiceError is one entry of a response's errors list.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServiceErrors is the error reported when a service returns a non-empty errors list.
type ServiceErrors []ServiceError

func (e ServiceErrors) Error() string {
	lines := make([]string, 0, len(e))
	for _, se := range e {
		lines = append(lines, fmt.Sprintf("Code: %s, Message: %s", se.Code, se.Message))
	}
	return strings.Join(lines, "\n")
}

// CheckErrors returns a ServiceErrors for the non-nil entries of errs, or nil
// when there are none.
func CheckErrors(errs []*ServiceError) error {
	var out ServiceErrors
	for _, se := range errs {
		if se != nil {
			out = append(out, *se)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
