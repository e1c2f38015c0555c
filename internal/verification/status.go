// Package verification holds the domain model for identity verification:
// the per-channel status state machine, the per-user verification record,
// KYC job representation, and the typed provider result parsed at the
// vendor boundary.
package verification

import (
	dErrors "montoit/pkg/domain-errors"
)

// ChannelStatus is the per-channel verification state. All three channels
// (KYC job, face, document) share the same state machine shape:
//
//	not_started -> pending -> [submitted -> processing] -> completed|verified
//	                                                    -> failed
//	pending|verified|failed -> pending  (explicit user-initiated restart only)
//	pending|submitted|processing -> cancelled  (KYC channel only)
//
// Terminal states are sticky until an explicit restart.
type ChannelStatus string

const (
	StatusNotStarted ChannelStatus = "not_started"
	StatusPending    ChannelStatus = "pending"
	StatusSubmitted  ChannelStatus = "submitted"
	StatusProcessing ChannelStatus = "processing"
	// StatusCompleted means the KYC job finished but the result's verification
	// outcome was not (or not yet) positive.
	StatusCompleted ChannelStatus = "completed"
	// StatusVerified is the terminal-success sentinel. The aggregator treats a
	// channel as verified iff its status equals this value.
	StatusVerified  ChannelStatus = "verified"
	StatusFailed    ChannelStatus = "failed"
	StatusCancelled ChannelStatus = "cancelled"
	// StatusError marks a channel whose last attempt died on a system fault
	// rather than a negative verification outcome.
	StatusError ChannelStatus = "error"
)

var validStatuses = map[ChannelStatus]bool{
	StatusNotStarted: true,
	StatusPending:    true,
	StatusSubmitted:  true,
	StatusProcessing: true,
	StatusCompleted:  true,
	StatusVerified:   true,
	StatusFailed:     true,
	StatusCancelled:  true,
	StatusError:      true,
}

// ParseChannelStatus constructs a ChannelStatus from external input (store
// rows, API payloads). Call at trust boundaries; direct casting bypasses
// validation.
func ParseChannelStatus(s string) (ChannelStatus, error) {
	st := ChannelStatus(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown channel status")
	}
	return st, nil
}

func (s ChannelStatus) String() string {
	return string(s)
}

// Terminal reports whether no automatic transition leaves this status.
func (s ChannelStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusVerified, StatusFailed, StatusCancelled, StatusError:
		return true
	}
	return false
}

// InFlight reports whether an attempt is underway: the job or check has been
// started and not yet reached a terminal status.
func (s ChannelStatus) InFlight() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusProcessing:
		return true
	}
	return false
}

// CanTransition validates a single state-machine step within one attempt.
// Restarts (terminal -> pending) are legal because they begin a new attempt;
// everything else must move forward.
func (s ChannelStatus) CanTransition(next ChannelStatus) bool {
	if s == next {
		// Idempotent re-writes (repeated polls) are always allowed.
		return true
	}
	switch s {
	case StatusNotStarted:
		return next == StatusPending
	case StatusPending:
		return next == StatusSubmitted || next == StatusProcessing ||
			next == StatusCompleted || next == StatusVerified ||
			next == StatusFailed || next == StatusCancelled || next == StatusError
	case StatusSubmitted:
		return next == StatusProcessing || next == StatusCompleted ||
			next == StatusVerified || next == StatusFailed || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusVerified ||
			next == StatusFailed || next == StatusCancelled
	case StatusCompleted:
		// A completed job may still be upgraded once the result outcome is
		// parsed, or restarted.
		return next == StatusVerified || next == StatusPending
	case StatusVerified, StatusFailed, StatusCancelled, StatusError:
		// Sticky until explicit restart.
		return next == StatusPending
	}
	return false
}
