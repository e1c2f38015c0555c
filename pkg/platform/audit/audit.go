// Package audit records the verification actions that matter after the fact:
// who started what, which vendor said what, and when a user's standing
// changed. Housing regulations make "prove why this tenant was marked
// verified" a real request; the trail answers it.
package audit

import (
	"context"
	"time"

	id "montoit/pkg/domain"
)

// Action identifies an audited verification action.
type Action string

const (
	ActionKYCStarted        Action = "kyc_started"
	ActionKYCCancelled      Action = "kyc_cancelled"
	ActionKYCCallback       Action = "kyc_callback"
	ActionFaceSubmitted     Action = "face_submitted"
	ActionDocumentSubmitted Action = "document_submitted"
	ActionStatusRead        Action = "status_read"
)

// Event is one audit trail entry. Timestamp is set by the publisher when
// zero.
type Event struct {
	Timestamp time.Time
	UserID    id.UserID
	Action    Action
	Channel   string
	Status    string
	Detail    string
	RequestID string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
