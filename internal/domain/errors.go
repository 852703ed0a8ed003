package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned when a keyword or manufacturer selection is empty
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a session operation is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrSourceUnavailable is returned when a source exhausted its retry budget
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrParseFailure is returned when a price or manufacturer field cannot be normalized
	ErrParseFailure = errors.New("parse failure")

	// ErrAllSourcesFailed is returned when every configured source failed for a phase
	ErrAllSourcesFailed = errors.New("all sources failed")

	// ErrSessionNotFound is returned when a session does not exist or has expired
	ErrSessionNotFound = errors.New("session not found")

	// ErrStaleSession is returned when a session was changed by a newer request
	ErrStaleSession = errors.New("session was superseded by a newer request")
)

// AllSourcesFailedError carries the per-source failure details of a phase
type AllSourcesFailedError struct {
	Phase    Phase
	Outcomes []SourceOutcome
}

func (e *AllSourcesFailedError) Error() string {
	details := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		details = append(details, fmt.Sprintf("%s: %s", o.Source, o.ErrorDetail))
	}
	if len(details) == 0 {
		return fmt.Sprintf("%s during %s: no sources configured", ErrAllSourcesFailed, e.Phase)
	}
	return fmt.Sprintf("%s during %s (%s)", ErrAllSourcesFailed, e.Phase, strings.Join(details, "; "))
}

func (e *AllSourcesFailedError) Unwrap() error {
	return ErrAllSourcesFailed
}
