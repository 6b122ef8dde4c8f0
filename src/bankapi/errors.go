package bankapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound matches any rejection the service answered with 404.
	ErrNotFound = errors.New("not found")
	// ErrMalformedResponse marks a completed call whose body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response from account service")
)

// ServiceRejection is a non-2xx answer. Detail is the service's own message
// and may be empty.
type ServiceRejection struct {
	Op     string
	Status int
	Detail string
}

func (e *ServiceRejection) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: account service returned %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: account service returned %d", e.Op, e.Status)
}

func (e *ServiceRejection) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// MessageOr returns Detail, or fallback when the service gave no reason.
func (e *ServiceRejection) MessageOr(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	return fallback
}

// TransportFailure means the request never produced a usable response.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// IsTransport reports whether err is a TransportFailure anywhere in its chain.
func IsTransport(err error) bool {
	var tf *TransportFailure
	return errors.As(err, &tf)
}

// AsRejection extracts a ServiceRejection from err.
func AsRejection(err error) (*ServiceRejection, bool) {
	var sr *ServiceRejection
	if errors.As(err, &sr) {
		return sr, true
	}
	return nil, false
}
