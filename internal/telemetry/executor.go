// Package telemetry defines the contract between dashboard assembly and the
// time-series data source: rows of tagged values and a classified error.
package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// Executor runs a fully resolved query against a data source.
// Zero rows is a successful, empty result.
type Executor interface {
	Execute(ctx context.Context, query string) ([]Row, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, query string) ([]Row, error)

// Execute calls f
func (f ExecutorFunc) Execute(ctx context.Context, query string) ([]Row, error) {
	return f(ctx, query)
}

// Sentinel errors for executor failures
var (
	// ErrConnectivity indicates the data source could not be reached or timed out
	ErrConnectivity = errors.New("data source unreachable")

	// ErrQueryRejected indicates the data source refused the query
	ErrQueryRejected = errors.New("query rejected by data source")
)

// ErrorKind classifies an ExecutorError
type ErrorKind int

const (
	Connectivity ErrorKind = iota
	QueryRejected
)

func (k ErrorKind) String() string {
	if k == QueryRejected {
		return "rejected"
	}
	return "connectivity"
}

// ExecutorError is returned by executors for any failed query
type ExecutorError struct {
	Kind  ErrorKind
	Query string
	Err   error
}

func (e *ExecutorError) Error() string {
	base := ErrConnectivity
	if e.Kind == QueryRejected {
		base = ErrQueryRejected
	}
	if e.Err == nil {
		return base.Error()
	}
	return fmt.Sprintf("%v: %v", base, e.Err)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

func (e *ExecutorError) Is(target error) bool {
	switch target {
	case ErrConnectivity:
		return e.Kind == Connectivity
	case ErrQueryRejected:
		return e.Kind == QueryRejected
	}
	return false
}

// NewConnectivityError creates a connectivity ExecutorError
func NewConnectivityError(query string, err error) *ExecutorError {
	return &ExecutorError{Kind: Connectivity, Query: query, Err: err}
}

// NewRejectedError creates a query-rejected ExecutorError
func NewRejectedError(query string, err error) *ExecutorError {
	return &ExecutorError{Kind: QueryRejected, Query: query, Err: err}
}

// IsConnectivity returns true if the error is a connectivity failure
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// IsRejected returns true if the data source refused the query
func IsRejected(err error) bool {
	return errors.Is(err, ErrQueryRejected)
}
