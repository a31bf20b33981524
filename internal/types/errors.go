package types

import (
	"errors"
	"fmt"
)

// Domain specific errors. Only ErrInvalidInput and ErrConfiguration cross the engine boundary.
var (
	ErrNotFound            = errors.New("requested item not found")
	ErrBadRequest          = errors.New("bad request")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConfiguration       = errors.New("invalid configuration")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// FailureKind classifies why an upstream fetch failed.
type FailureKind string

const (
	FailureTransport   FailureKind = "transport"
	FailureAuth        FailureKind = "auth"
	FailureMalformed   FailureKind = "malformed"
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnavailable FailureKind = "unavailable"
	FailureStatus      FailureKind = "status"
)

// Failure is the only error type returned by the external data adapters.
type Failure struct {
	Source  string
	Kind    FailureKind
	Message string
	Err     error
}

func NewFailure(source string, kind FailureKind, message string, err error) *Failure {
	return &Failure{Source: source, Kind: kind, Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s %s failure: %s: %v", f.Source, f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s %s failure: %s", f.Source, f.Kind, f.Message)
}

func (f *Failure) Unwrap() []error {
	if f.Err != nil {
		return []error{ErrUpstreamUnavailable, f.Err}
	}
	return []error{ErrUpstreamUnavailable}
}

// ValidationError reports one rejected field of a caller supplied request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ValidationErrors collects every rejected field so clients can fix a request in one round trip.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	msg := fmt.Sprintf("%d invalid fields:", len(v))
	for _, e := range v {
		msg += " " + e.Error() + ";"
	}
	return msg
}

func (v ValidationErrors) Unwrap() error { return ErrInvalidInput }
