package rest

import "fmt"

// NetworkError wraps a transport-level failure (dial, timeout, broken
// connection) for a REST operation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the server.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error: status %d: %s", e.Op, e.Status, e.Body)
}
