package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// ActorKind identifies who initiated an action on a subscription.
type ActorKind string

const (
	ActorStudent  ActorKind = "student"
	ActorOperator ActorKind = "operator"
)

// Actor is the acting principal as supplied by the identity layer. The core
// does not re-derive permissions; callers guard operations before invoking
// them.
type Actor struct {
	Kind   ActorKind `json:"kind"`
	UserID int64     `json:"user_id"`
}

// Subscription is the durable seat grant produced by approving a request.
// SeatLabel may be nil: the student rides the route without reserved
// seating, still consuming one unit of route capacity.
//
// While status is active, (BusID, SeatLabel, TermID) is exclusive across
// all subscriptions with a non-nil seat, and (StudentID, TermID) is
// exclusive regardless of seat. Both are enforced by partial unique indexes.
type Subscription struct {
	ID           uuid.UUID          `json:"id"`
	RequestID    uuid.UUID          `json:"request_id"`
	StudentID    int64              `json:"student_id"`
	TermID       int64              `json:"term_id"`
	RouteID      int64              `json:"route_id"`
	StopID       int64              `json:"stop_id"`
	BusID        int64              `json:"bus_id"`
	SeatLabel    *string            `json:"seat_label,omitempty"`
	Status       SubscriptionStatus `json:"status"`
	StartedAt    time.Time          `json:"started_at"`
	CancelledAt  *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy  *ActorKind         `json:"cancelled_by,omitempty"`
	CancelReason *string            `json:"cancel_reason,omitempty"`
}
