package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusApproved   RequestStatus = "approved"
	RequestStatusRejected   RequestStatus = "rejected"
	RequestStatusWaitlisted RequestStatus = "waitlisted"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

// Request is a student's per-term ask to join a route. At most one live
// request (pending, waitlisted or approved) may exist per (student, term).
type Request struct {
	ID              uuid.UUID     `json:"id"`
	StudentID       int64         `json:"student_id"`
	TermID          int64         `json:"term_id"`
	RouteID         int64         `json:"route_id"`
	StopID          int64         `json:"stop_id"`
	PreferredBusID  *int64        `json:"preferred_bus_id,omitempty"`
	PreferredSeat   *string       `json:"preferred_seat,omitempty"`
	Status          RequestStatus `json:"status"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	RequestedAt     time.Time     `json:"requested_at"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
}

// IsTerminal reports whether the status admits no further transition.
// Waitlisted is a holding state, not terminal.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
		return true
	}
	return false
}

// Blocks reports whether a request in this status blocks the student from
// filing a new request for the same term. Rejected and cancelled do not.
func (s RequestStatus) Blocks() bool {
	switch s {
	case RequestStatusPending, RequestStatusWaitlisted, RequestStatusApproved:
		return true
	}
	return false
}

// CanTransitionTo encodes the request state machine:
// pending -> approved|rejected|waitlisted|cancelled,
// waitlisted -> approved|rejected|cancelled.
func (s RequestStatus) CanTransitionTo(to RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		switch to {
		case RequestStatusApproved, RequestStatusRejected, RequestStatusWaitlisted, RequestStatusCancelled:
			return true
		}
	case RequestStatusWaitlisted:
		switch to {
		case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
			return true
		}
	}
	return false
}
