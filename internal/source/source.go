// Package source provides the paginated backends feeding the table
// engine: a crawl API HTTP client and a read-only crawl database reader.
// Both serve pages of raw JSON rows and translate failures into a shared
// transport/protocol error taxonomy so the engine can treat them
// uniformly: a failed page is logged, left absent, and retried on a
// later pass, never propagated as a panic.
package source

import "fmt"

// TransportError reports a failure getting rows out of the source at
// all: a refused connection, a timeout, a database query that could not
// run.
type TransportError struct {
	URL string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("source: transport: %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response the source could not accept: a
// non-2xx status, a malformed body, or an envelope with success=false.
type ProtocolError struct {
	Status  int // HTTP status when applicable, 0 otherwise
	Message string
}

// Error implements error.
func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("source: protocol: status %d: %s", e.Status, e.Message)
	}
	return "source: protocol: " + e.Message
}
