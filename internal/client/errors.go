package client

import "fmt"

// StatusError is returned when the HTTP status is outside [200, 300).
// The body of such a response is never inspected.
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// AppError is returned when the server answered with a non-success envelope
// code, or with a body that is not an envelope at all.
type AppError struct {
	Code int
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code %d: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("code %d: %s", e.Code, e.Msg)
}

func (e *AppError) Unwrap() error {
	return e.Err
}
