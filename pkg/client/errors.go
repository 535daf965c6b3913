package client

import "fmt"

// TransportError means the request did not succeed: the host was unreachable,
// the service answered with a non-2xx status, or the body could not be read.
type TransportError struct {
	Endpoint   string
	StatusCode int // 0 when no response arrived
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis service error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("analysis service %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
