package types

import (
	"errors"
	"fmt"
	"time"
)

// Terminal and recoverable failure conditions shared across the pipeline.
// Components convert transport-level errors into these at their boundary;
// only the orchestrator decides retry-vs-fallback-vs-terminal.
var (
	// ErrMissingCredential means the chosen path needs the cloud API key.
	ErrMissingCredential = errors.New("cloud credential not configured")

	// ErrNoBackendAvailable means the local path failed and there is no
	// credential to fall back on.
	ErrNoBackendAvailable = errors.New("no transcription backend available")

	// ErrDuplicateName is returned when creating a context pool whose
	// name already exists.
	ErrDuplicateName = errors.New("name already exists")

	// ErrUnknownStyle is returned for a style id the resolver does not know.
	ErrUnknownStyle = errors.New("unknown style")
)

// DecodeError marks audio that could not be decoded for analysis.
// It is non-fatal: callers log it and proceed without metrics.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s audio: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConnectionError marks a network-level failure reaching the sidecar.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("sidecar unreachable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError marks a request that exceeded its deadline.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s: retry with shorter audio", e.Op, e.Limit)
}

// BackendError carries a non-2xx response from the local sidecar.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("sidecar error (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("sidecar error: HTTP %d", e.Status)
}

// AuthError marks a rejected or missing cloud credential.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cloud auth failed: %s", e.Detail)
}

// RateLimitOrServerError carries a non-2xx response from the cloud API.
type RateLimitOrServerError struct {
	Status int
	Detail string
}

func (e *RateLimitOrServerError) Error() string {
	return fmt.Sprintf("cloud API error (%d): %s", e.Status, e.Detail)
}

// MalformedResponseError means the cloud reply was 2xx but carried no text.
type MalformedResponseError struct {
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed cloud response: %s", e.Detail)
}

// TranscriptionFailedError is the terminal wrapper the orchestrator
// returns when the cloud attempt (direct or fallback) fails.
type TranscriptionFailedError struct {
	Cause error
}

func (e *TranscriptionFailedError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Cause)
}

func (e *TranscriptionFailedError) Unwrap() error { return e.Cause }
