package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session is absent from both the
	// cache and the durable backend.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrAtCapacity is returned when a new fingerprint hits a full session.
	ErrAtCapacity = errors.New("quiz session at capacity")
	// ErrDuplicateSubmission is returned when a fingerprint already holds a
	// ledger entry for the session.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrSessionClosed is returned on submit after closesAt, only when close
	// enforcement is enabled.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrUpstreamFailure indicates every question acquisition strategy failed.
	ErrUpstreamFailure = errors.New("question acquisition failed")
)
