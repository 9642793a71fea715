package gbfs

import "fmt"

// RequestErrorKind distinguishes the transient transport failure modes a
// single fetch can surface.
type RequestErrorKind int

const (
	RequestNetwork RequestErrorKind = iota
	RequestTimeout
	RequestStatus
)

func (k RequestErrorKind) String() string {
	switch k {
	case RequestTimeout:
		return "timeout"
	case RequestStatus:
		return "status"
	default:
		return "network"
	}
}

// RequestError is a transient transport failure for one fetch. The client
// never retries; retry policy belongs to the polling session.
type RequestError struct {
	URL    string
	Kind   RequestErrorKind
	Status int
	Cause  error
}

func (e *RequestError) Error() string {
	if e.Kind == RequestStatus {
		return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("%s error fetching %s: %v", e.Kind, e.URL, e.Cause)
}

func (e *RequestError) Unwrap() error { return e.Cause }

// PayloadError reports a response body that could not be normalized into a
// RawSnapshot: malformed JSON or an unsupported payload shape.
type PayloadError struct {
	Feed   string
	Reason string
	Cause  error
}

func (e *PayloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bad payload for feed %s: %s: %v", e.Feed, e.Reason, e.Cause)
	}
	return fmt.Sprintf("bad payload for feed %s: %s", e.Feed, e.Reason)
}

func (e *PayloadError) Unwrap() error { return e.Cause }
