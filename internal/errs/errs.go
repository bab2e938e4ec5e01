// Package errs defines the error kinds shared by the connection, command and
// directory layers.
package errs

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotConnected means an operation was attempted with no live session.
	ErrNotConnected = errors.New("not connected")
	// ErrConnectFailed means opening a session failed and the retry policy gave up.
	ErrConnectFailed = errors.New("connect failed")
	// ErrTransport means a request failed after a session existed.
	ErrTransport = errors.New("transport error")
	// ErrRemoteExecution means Redis or the Gears script itself reported an error.
	ErrRemoteExecution = errors.New("remote execution error")
	// ErrParse means a reply could not be decoded into the expected structure.
	ErrParse = errors.New("parse error")
)

// OpError ties a failed operation to its error kind and cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New wraps err as an OpError of the given kind.
func New(op string, kind error, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Classify maps a failed go-redis request to an error kind: server error
// replies become ErrRemoteExecution, everything else ErrTransport.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return New(op, ErrRemoteExecution, err)
	}
	return New(op, ErrTransport, err)
}

// Kind returns the error kind carried by err, or nil when it has none.
func Kind(err error) error {
	for _, kind := range []error{ErrNotConnected, ErrConnectFailed, ErrTransport, ErrRemoteExecution, ErrParse} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
