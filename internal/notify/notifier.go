// Package notify carries the domain events the core emits after a request
// review or a subscription cancellation commits. Delivery is best-effort:
// a failed notification never affects the already-committed operation.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeApproved   Outcome = "approved"
	OutcomeRejected   Outcome = "rejected"
	OutcomeWaitlisted Outcome = "waitlisted"
	OutcomeCancelled  Outcome = "cancelled"
)

// Event describes one review/cancellation outcome for one student.
type Event struct {
	ID             uuid.UUID  `json:"id"`
	Outcome        Outcome    `json:"outcome"`
	RequestID      *uuid.UUID `json:"request_id,omitempty"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	StudentID      int64      `json:"student_id"`
	TermID         int64      `json:"term_id"`
	RouteID        int64      `json:"route_id"`
	Reason         string     `json:"reason,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// NewEvent stamps an event with identity and time.
func NewEvent(outcome Outcome) Event {
	return Event{
		ID:         uuid.New(),
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}
}

// Notifier consumes domain events. Implementations must not block the
// caller and must swallow delivery failures (logging them is enough).
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier writes events to the log. It is the fallback when no
// messaging channel is configured, and keeps event emission observable in
// development.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) {
	n.logger.Info("domain event",
		zap.String("event_id", ev.ID.String()),
		zap.String("outcome", string(ev.Outcome)),
		zap.Int64("student_id", ev.StudentID),
		zap.Int64("term_id", ev.TermID),
		zap.Int64("route_id", ev.RouteID),
	)
}
