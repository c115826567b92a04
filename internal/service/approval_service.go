package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// ApprovalService orchestrates the conversion of a request into a
// subscription: state check, per-student check, authoritative capacity
// check, seat claim, subscription creation and request transition, all as
// one transaction. If any step fails nothing is observable from the
// attempt.
type ApprovalService struct {
	requests  RequestStore
	subs      *SubscriptionService
	routes    RouteStore
	buses     BusStore
	allocator *SeatAllocator
	tx        Transactor
	notifier  notify.Notifier
	logger    *zap.Logger

	// retryable classifies transaction errors worth re-running from
	// scratch (serialization failures, deadlocks). Business errors are
	// never retried: a taken seat stays taken.
	retryable func(error) bool
}

const approveRetries = 3

func NewApprovalService(
	requests RequestStore,
	subs *SubscriptionService,
	routes RouteStore,
	buses BusStore,
	allocator *SeatAllocator,
	tx Transactor,
	notifier notify.Notifier,
	logger *zap.Logger,
	retryable func(error) bool,
) *ApprovalService {
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	return &ApprovalService{
		requests:  requests,
		subs:      subs,
		routes:    routes,
		buses:     buses,
		allocator: allocator,
		tx:        tx,
		notifier:  notifier,
		logger:    logger,
		retryable: retryable,
	}
}

// Approve grants the request a place on busID, with seatLabel reserved when
// given. On success the request is approved and exactly one active
// subscription exists for it.
func (s *ApprovalService) Approve(ctx context.Context, requestID uuid.UUID, busID int64, seatLabel *string) (*model.Subscription, error) {
	var sub *model.Subscription

	backoff := retry.WithMaxRetries(approveRetries, retry.NewFibonacci(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			res, err := s.approveInTx(ctx, requestID, busID, seatLabel)
			if err != nil {
				return err
			}
			sub = res
			return nil
		})
		if err != nil && s.retryable(err) {
			s.logger.Warn("approval transaction conflict, retrying",
				zap.String("request_id", requestID.String()),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transport request approved",
		zap.String("request_id", requestID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.Int64("student_id", sub.StudentID),
		zap.Int64("bus_id", sub.BusID),
	)

	ev := notify.NewEvent(notify.OutcomeApproved)
	ev.RequestID = &requestID
	ev.SubscriptionID = &sub.ID
	ev.StudentID = sub.StudentID
	ev.TermID = sub.TermID
	ev.RouteID = sub.RouteID
	s.notifier.Notify(ctx, ev)

	return sub, nil
}

func (s *ApprovalService) approveInTx(ctx context.Context, requestID uuid.UUID, busID int64, seatLabel *string) (*model.Subscription, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, transportcore.ErrRequestNotFound
	}
	if !req.Status.CanTransitionTo(model.RequestStatusApproved) {
		return nil, transportcore.ErrInvalidRequestState
	}

	existing, err := s.subs.subs.GetActiveByStudent(ctx, req.StudentID, req.TermID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, transportcore.ErrAlreadySubscribed
	}

	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, transportcore.ErrBusNotFound
	}
	if !bus.IsActive {
		return nil, transportcore.NewValidationError(
			fmt.Sprintf("bus %s is not in service", bus.Number),
			transportcore.FieldError{Field: "bus_id", Error: "bus is not active"},
		)
	}
	serves, err := s.routes.ServesRoute(ctx, req.RouteID, bus.ID)
	if err != nil {
		return nil, err
	}
	if !serves {
		return nil, transportcore.NewValidationError(
			fmt.Sprintf("bus %s does not serve the requested route", bus.Number),
			transportcore.FieldError{Field: "bus_id", Error: "bus does not serve route"},
		)
	}

	// Authoritative capacity check, serialized against concurrent
	// approvals on the same route by the row lock. The advisory check at
	// request creation has no bearing here.
	locked, err := s.routes.Lock(ctx, req.RouteID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, transportcore.ErrRouteNotFound
	}
	total, err := s.routes.TotalCapacity(ctx, req.RouteID)
	if err != nil {
		return nil, err
	}
	occupied, err := s.subs.subs.CountActiveByRoute(ctx, req.RouteID, req.TermID)
	if err != nil {
		return nil, err
	}
	if total-occupied <= 0 {
		return nil, transportcore.ErrRouteFull
	}

	var claimed *string
	if seatLabel != nil && *seatLabel != "" {
		label, err := s.allocator.CheckClaim(ctx, bus, *seatLabel, req.TermID)
		if err != nil {
			return nil, err
		}
		claimed = &label
	}

	sub, err := s.subs.createFromRequest(ctx, req, bus.ID, claimed)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ok, err := s.requests.Transition(
		ctx, requestID,
		[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusWaitlisted},
		model.RequestStatusApproved,
		&now, nil,
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transportcore.ErrInvalidRequestState
	}

	return sub, nil
}

// BulkApprovalItem names one request to approve plus the operator's bus and
// seat choice for it. A nil bus falls back to the student's preferred bus; a
// nil seat falls back to the preferred seat only when the effective bus is
// the preferred one. No seat either way means no reserved seat.
type BulkApprovalItem struct {
	RequestID uuid.UUID `json:"request_id"`
	BusID     *int64    `json:"bus_id,omitempty"`
	SeatLabel *string   `json:"seat_label,omitempty"`
}

// BulkApprovalResult is the per-request outcome of a bulk approval.
type BulkApprovalResult struct {
	RequestID    uuid.UUID
	Subscription *model.Subscription
	Err          error
}

// BulkApprove approves each request in its own transaction. One request
// failing (full route, taken seat) neither blocks nor rolls back the
// others; partial success is the expected outcome of an operator reviewing
// a batch.
func (s *ApprovalService) BulkApprove(ctx context.Context, items []BulkApprovalItem) []BulkApprovalResult {
	results := make([]BulkApprovalResult, 0, len(items))

	for _, item := range items {
		results = append(results, s.approveOne(ctx, item))
	}

	return results
}

func (s *ApprovalService) approveOne(ctx context.Context, item BulkApprovalItem) BulkApprovalResult {
	res := BulkApprovalResult{RequestID: item.RequestID}

	busID := item.BusID
	seat := item.SeatLabel
	if busID == nil || seat == nil {
		req, err := s.requests.GetByID(ctx, item.RequestID)
		if err != nil {
			res.Err = err
			return res
		}
		if req == nil {
			res.Err = transportcore.ErrRequestNotFound
			return res
		}
		if busID == nil {
			busID = req.PreferredBusID
		}
		// The preferred seat was chosen for the preferred bus; it only
		// carries over when that is the bus being approved.
		if seat == nil && busID != nil && req.PreferredBusID != nil && *busID == *req.PreferredBusID {
			seat = req.PreferredSeat
		}
	}
	if busID == nil {
		res.Err = transportcore.NewValidationError(
			"no bus chosen and the request names no preferred bus",
			transportcore.FieldError{Field: "bus_id", Error: "required"},
		)
		return res
	}

	sub, err := s.Approve(ctx, item.RequestID, *busID, seat)
	res.Subscription = sub
	res.Err = err
	return res
}
