package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/repository/base"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

type SubscriptionRepository struct {
	*base.Repository
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{Repository: base.NewRepository(pool)}
}

const subscriptionColumns = `
	id, request_id, student_id, term_id, route_id, stop_id, bus_id,
	seat_label, status, started_at, cancelled_at, cancelled_by, cancel_reason
`

// Create inserts an active subscription. The partial unique indexes are the
// load-bearing guards here: a seat clash surfaces as ErrSeatAlreadyTaken and
// a second active subscription for the student as ErrAlreadySubscribed, no
// matter what any earlier in-memory check concluded.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	query := `
		INSERT INTO subscriptions
			(id, request_id, student_id, term_id, route_id, stop_id, bus_id,
			 seat_label, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.DB(ctx).Exec(
		ctx, query,
		sub.ID,
		sub.RequestID,
		sub.StudentID,
		sub.TermID,
		sub.RouteID,
		sub.StopID,
		sub.BusID,
		sub.SeatLabel,
		sub.Status,
		sub.StartedAt,
	)

	if err != nil {
		switch base.UniqueViolation(err) {
		case constraintActiveSeat:
			return transportcore.ErrSeatAlreadyTaken
		case constraintActiveStudent:
			return transportcore.ErrAlreadySubscribed
		}
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

// GetByID returns the subscription or nil when it does not exist.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.DB(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}

	return sub, nil
}

// GetActiveByStudent returns the student's active subscription for the term,
// or nil.
func (r *SubscriptionRepository) GetActiveByStudent(ctx context.Context, studentID, termID int64) (*model.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE student_id = $1 AND term_id = $2 AND status = 'active'
	`

	sub, err := scanSubscription(r.DB(ctx).QueryRow(ctx, query, studentID, termID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active subscription by student: %w", err)
	}

	return sub, nil
}

// CountActiveByRoute counts active subscriptions for a route+term. Seatless
// subscriptions count too: each active rider consumes one unit of capacity.
func (r *SubscriptionRepository) CountActiveByRoute(ctx context.Context, routeID, termID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM subscriptions
		WHERE route_id = $1 AND term_id = $2 AND status = 'active'
	`

	var count int
	if err := r.DB(ctx).QueryRow(ctx, query, routeID, termID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active subscriptions: %w", err)
	}
	return count, nil
}

// OccupiedSeats returns the seat labels held by active subscriptions on a
// bus for a term.
func (r *SubscriptionRepository) OccupiedSeats(ctx context.Context, busID, termID int64) ([]string, error) {
	query := `
		SELECT seat_label
		FROM subscriptions
		WHERE bus_id = $1 AND term_id = $2 AND status = 'active'
		  AND seat_label IS NOT NULL
		ORDER BY seat_label
	`

	rows, err := r.DB(ctx).Query(ctx, query, busID, termID)
	if err != nil {
		return nil, fmt.Errorf("get occupied seats: %w", err)
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, fmt.Errorf("scan seat label: %w", err)
		}
		seats = append(seats, seat)
	}

	return seats, nil
}

// SeatTaken reports whether an active subscription holds (bus, seat, term).
func (r *SubscriptionRepository) SeatTaken(ctx context.Context, busID int64, seatLabel string, termID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM subscriptions
			WHERE bus_id = $1 AND seat_label = $2 AND term_id = $3
			  AND status = 'active'
		)
	`

	var taken bool
	if err := r.DB(ctx).QueryRow(ctx, query, busID, seatLabel, termID).Scan(&taken); err != nil {
		return false, fmt.Errorf("check seat taken: %w", err)
	}
	return taken, nil
}

// Cancel terminates an active subscription, recording who cancelled and why.
// Returns false when the subscription was not active, so double cancellation
// is detected instead of silently absorbed.
func (r *SubscriptionRepository) Cancel(
	ctx context.Context,
	id uuid.UUID,
	by model.ActorKind,
	reason *string,
	at time.Time,
) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled', cancelled_at = $1, cancelled_by = $2, cancel_reason = $3
		WHERE id = $4 AND status = 'active'
	`

	tag, err := r.DB(ctx).Exec(ctx, query, at, by, reason, id)
	if err != nil {
		return false, fmt.Errorf("cancel subscription: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListByStudent returns the student's subscriptions, newest first.
func (r *SubscriptionRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE student_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.DB(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by student: %w", err)
	}
	defer rows.Close()

	var subs []*model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var sub model.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.RequestID,
		&sub.StudentID,
		&sub.TermID,
		&sub.RouteID,
		&sub.StopID,
		&sub.BusID,
		&sub.SeatLabel,
		&sub.Status,
		&sub.StartedAt,
		&sub.CancelledAt,
		&sub.CancelledBy,
		&sub.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
