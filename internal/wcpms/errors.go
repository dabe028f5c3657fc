package wcpms

import "fmt"

// TransportError reports a request that never produced an HTTP response,
// typically because the host is unreachable.
type TransportError struct {
	Method string
	Route  string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("execute request %s %s: %v", e.Method, e.Route, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError reports a response with a non-2xx status.
type HTTPError struct {
	Method     string
	Route      string
	StatusCode int
	// Body holds the start of the response body, for diagnostics.
	Body string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("api %s %s returned status %d", e.Method, e.Route, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// DecodeError reports a body that is not JSON, lacks the envelope field or
// holds a payload that does not match the expected shape.
type DecodeError struct {
	Route string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode response %s: %v", e.Route, e.Err)
	}
	return fmt.Sprintf("decode response %s field %q: %v", e.Route, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
