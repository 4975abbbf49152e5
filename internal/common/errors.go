package common

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstreamUnavailable matches every *UpstreamError via errors.Is.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// UpstreamError reports a failed call to an external collaborator
// (relational store, vector store, completion service, broker).
type UpstreamError struct {
	Service string
	Err     error
}

func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Service: service, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }
