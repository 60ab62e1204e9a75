// Package apierr carries an HTTP status and error code chosen at the edge,
// for failures that never reach the domain (bad ids, malformed bodies).
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

// As returns the status and code of the first *Error in err's chain.
func As(err error) (status int, code string, ok bool) {
	var e *Error
	if !errors.As(err, &e) || e == nil || e.Status == 0 {
		return 0, "", false
	}
	return e.Status, e.Code, true
}
