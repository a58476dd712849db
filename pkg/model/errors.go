package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by sources, configuration and the poller.
var (
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrConfigurationInvalid = errors.New("configuration invalid")
)

// SourceError wraps a failure of a single source fetch with its kind.
type SourceError struct {
	Source string
	Kind   error
	Err    error
}

// NewSourceError builds a SourceError of the given kind.
func NewSourceError(source string, kind, err error) *SourceError {
	return &SourceError{Source: source, Kind: kind, Err: err}
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// InvalidConfig returns an error of kind ErrConfigurationInvalid.
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigurationInvalid, fmt.Sprintf(format, args...))
}
