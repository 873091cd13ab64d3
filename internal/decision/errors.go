package decision

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies why a decision fetch failed.
type ErrorKind uint8

const (
	KindServer ErrorKind = iota
	KindRateLimited
	KindConnection
	KindUpstream
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindRateLimited:
		return "rate_limited"
	case KindConnection:
		return "connection"
	case KindUpstream:
		return "upstream"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Soft reports whether failures of this kind are retried silently.
func (k ErrorKind) Soft() bool { return k == KindRateLimited }

var (
	ErrRateLimited = errors.New("rate limited")
	ErrConnection  = errors.New("decision service unreachable")
	ErrUpstream    = errors.New("upstream dependency failed")
	ErrServer      = errors.New("decision service error")
	ErrMalformed   = errors.New("malformed decision payload")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindConnection:
		return ErrConnection
	case KindUpstream:
		return ErrUpstream
	case KindMalformed:
		return ErrMalformed
	default:
		return ErrServer
	}
}

// FetchError is the error returned by Source implementations.
type FetchError struct {
	Kind   ErrorKind
	Status int // HTTP status when one was received, else 0
	Err    error
}

func (e *FetchError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *FetchError) Is(target error) bool { return target == e.Kind.sentinel() }

// NewFetchError wraps err with a kind and optional HTTP status.
func NewFetchError(kind ErrorKind, status int, err error) *FetchError {
	return &FetchError{Kind: kind, Status: status, Err: err}
}

// Classify maps any fetch error onto the taxonomy. Timeouts and network errors
// count as connection failures, anything unrecognized as a server failure.
func Classify(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return KindConnection
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindConnection
	}
	return KindServer
}
