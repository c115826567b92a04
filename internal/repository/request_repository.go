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

// Constraint names from migrations; unique violations are mapped onto the
// domain errors they enforce.
const (
	constraintLiveRequest   = "transport_requests_student_term_live_key"
	constraintActiveSeat    = "subscriptions_bus_seat_term_active_key"
	constraintActiveStudent = "subscriptions_student_term_active_key"
)

type RequestRepository struct {
	*base.Repository
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{Repository: base.NewRepository(pool)}
}

const requestColumns = `
	id, student_id, term_id, route_id, stop_id, preferred_bus_id,
	preferred_seat, status, rejection_reason, requested_at, reviewed_at
`

// Create inserts a new request. The partial unique index on live requests
// is the real duplicate guard; a violation surfaces as
// ErrDuplicateActiveRequest.
func (r *RequestRepository) Create(ctx context.Context, req *model.Request) error {
	query := `
		INSERT INTO transport_requests
			(id, student_id, term_id, route_id, stop_id, preferred_bus_id,
			 preferred_seat, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.DB(ctx).Exec(
		ctx, query,
		req.ID,
		req.StudentID,
		req.TermID,
		req.RouteID,
		req.StopID,
		req.PreferredBusID,
		req.PreferredSeat,
		req.Status,
		req.RequestedAt,
	)

	if err != nil {
		if base.UniqueViolation(err) == constraintLiveRequest {
			return transportcore.ErrDuplicateActiveRequest
		}
		return fmt.Errorf("create request: %w", err)
	}

	return nil
}

// GetByID returns the request or nil when it does not exist.
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM transport_requests WHERE id = $1`

	req, err := scanRequest(r.DB(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get request by id: %w", err)
	}

	return req, nil
}

// HasBlocking reports whether the student already holds a live request for
// the term. Advisory only; Create re-checks through the unique index.
func (r *RequestRepository) HasBlocking(ctx context.Context, studentID, termID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM transport_requests
			WHERE student_id = $1 AND term_id = $2
			  AND status IN ('pending', 'waitlisted', 'approved')
		)
	`

	var exists bool
	if err := r.DB(ctx).QueryRow(ctx, query, studentID, termID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check blocking request: %w", err)
	}
	return exists, nil
}

// Transition moves the request to status iff its current status is one of
// from. Returns false when the guard did not match, so a concurrent review
// that got there first is detected instead of overwritten.
func (r *RequestRepository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from []model.RequestStatus,
	to model.RequestStatus,
	reviewedAt *time.Time,
	reason *string,
) (bool, error) {
	query := `
		UPDATE transport_requests
		SET status = $1,
		    reviewed_at = COALESCE($2, reviewed_at),
		    rejection_reason = COALESCE($3, rejection_reason)
		WHERE id = $4 AND status = ANY($5)
	`

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	tag, err := r.DB(ctx).Exec(ctx, query, to, reviewedAt, reason, id, statuses)
	if err != nil {
		return false, fmt.Errorf("transition request: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListForReview returns pending and waitlisted requests for a route+term,
// oldest first.
func (r *RequestRepository) ListForReview(ctx context.Context, routeID, termID int64) ([]*model.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM transport_requests
		WHERE route_id = $1 AND term_id = $2
		  AND status IN ('pending', 'waitlisted')
		ORDER BY requested_at ASC
	`

	rows, err := r.DB(ctx).Query(ctx, query, routeID, termID)
	if err != nil {
		return nil, fmt.Errorf("list requests for review: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByStudent returns the student's requests, newest first.
func (r *RequestRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM transport_requests
		WHERE student_id = $1
		ORDER BY requested_at DESC
	`

	rows, err := r.DB(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list requests by student: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

func scanRequest(row pgx.Row) (*model.Request, error) {
	var req model.Request
	err := row.Scan(
		&req.ID,
		&req.StudentID,
		&req.TermID,
		&req.RouteID,
		&req.StopID,
		&req.PreferredBusID,
		&req.PreferredSeat,
		&req.Status,
		&req.RejectionReason,
		&req.RequestedAt,
		&req.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]*model.Request, error) {
	var reqs []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
