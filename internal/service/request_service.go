package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// NewRequest carries a student's ask to join a route for a term.
type NewRequest struct {
	StudentID      int64   `json:"student_id"`
	TermID         int64   `json:"term_id"`
	RouteID        int64   `json:"route_id"`
	StopID         int64   `json:"stop_id"`
	PreferredBusID *int64  `json:"preferred_bus_id,omitempty"`
	PreferredSeat  *string `json:"preferred_seat,omitempty"`
}

// RequestService owns the request lifecycle outside of approval: creation,
// rejection, waitlisting and student cancellation.
type RequestService struct {
	requests RequestStore
	routes   RouteStore
	buses    BusStore
	capacity *CapacityService
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewRequestService(
	requests RequestStore,
	routes RouteStore,
	buses BusStore,
	capacity *CapacityService,
	notifier notify.Notifier,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requests: requests,
		routes:   routes,
		buses:    buses,
		capacity: capacity,
		notifier: notifier,
		logger:   logger,
	}
}

// Create files a pending request. The duplicate check here is advisory; the
// partial unique index on live requests backs it. The capacity check is
// advisory too: a request against a full route is still filed (seats may
// free up before review), only approval enforces capacity.
func (s *RequestService) Create(ctx context.Context, nr NewRequest) (*model.Request, error) {
	if err := s.validateNewRequest(ctx, &nr); err != nil {
		return nil, err
	}

	blocked, err := s.requests.HasBlocking(ctx, nr.StudentID, nr.TermID)
	if err != nil {
		return nil, fmt.Errorf("check existing request: %w", err)
	}
	if blocked {
		return nil, transportcore.ErrDuplicateActiveRequest
	}

	avail, err := s.capacity.RouteAvailability(ctx, nr.RouteID, nr.TermID)
	if err != nil {
		return nil, err
	}
	if avail.IsFull {
		s.logger.Warn("request filed against a full route",
			zap.Int64("student_id", nr.StudentID),
			zap.Int64("route_id", nr.RouteID),
			zap.Int64("term_id", nr.TermID),
			zap.Int("total_capacity", avail.TotalCapacity),
		)
	}

	req := &model.Request{
		ID:             uuid.New(),
		StudentID:      nr.StudentID,
		TermID:         nr.TermID,
		RouteID:        nr.RouteID,
		StopID:         nr.StopID,
		PreferredBusID: nr.PreferredBusID,
		PreferredSeat:  nr.PreferredSeat,
		Status:         model.RequestStatusPending,
		RequestedAt:    time.Now().UTC(),
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("transport request created",
		zap.String("request_id", req.ID.String()),
		zap.Int64("student_id", req.StudentID),
		zap.Int64("route_id", req.RouteID),
		zap.Int64("term_id", req.TermID),
	)

	return req, nil
}

// Reject moves a pending or waitlisted request to rejected. The reason is
// mandatory and surfaced to the student.
func (s *RequestService) Reject(ctx context.Context, id uuid.UUID, reason string) (*model.Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, transportcore.NewValidationError(
			"rejection reason is required",
			transportcore.FieldError{Field: "reason", Error: "must not be empty"},
		)
	}

	req, err := s.getForReview(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ok, err := s.requests.Transition(
		ctx, id,
		[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusWaitlisted},
		model.RequestStatusRejected,
		&now, &reason,
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transportcore.ErrInvalidRequestState
	}

	req.Status = model.RequestStatusRejected
	req.ReviewedAt = &now
	req.RejectionReason = &reason

	s.logger.Info("transport request rejected",
		zap.String("request_id", id.String()),
		zap.Int64("student_id", req.StudentID),
	)

	ev := notify.NewEvent(notify.OutcomeRejected)
	ev.RequestID = &req.ID
	ev.StudentID = req.StudentID
	ev.TermID = req.TermID
	ev.RouteID = req.RouteID
	ev.Reason = reason
	s.notifier.Notify(ctx, ev)

	return req, nil
}

// Waitlist parks a pending request. No capacity check: a waitlist entry
// reserves nothing.
func (s *RequestService) Waitlist(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	req, err := s.getForReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestStatusPending {
		return nil, transportcore.ErrInvalidRequestState
	}

	now := time.Now().UTC()
	ok, err := s.requests.Transition(
		ctx, id,
		[]model.RequestStatus{model.RequestStatusPending},
		model.RequestStatusWaitlisted,
		&now, nil,
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transportcore.ErrInvalidRequestState
	}

	req.Status = model.RequestStatusWaitlisted
	req.ReviewedAt = &now

	s.logger.Info("transport request waitlisted",
		zap.String("request_id", id.String()),
		zap.Int64("student_id", req.StudentID),
	)

	return req, nil
}

// CancelByStudent withdraws the student's own request before review. An
// approved request cannot be cancelled here; the student cancels the
// resulting subscription instead.
func (s *RequestService) CancelByStudent(ctx context.Context, id uuid.UUID, studentID int64) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, transportcore.ErrRequestNotFound
	}
	if req.StudentID != studentID {
		return nil, transportcore.ErrNotPermitted
	}
	if req.Status != model.RequestStatusPending && req.Status != model.RequestStatusWaitlisted {
		return nil, transportcore.ErrInvalidRequestState
	}

	ok, err := s.requests.Transition(
		ctx, id,
		[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusWaitlisted},
		model.RequestStatusCancelled,
		nil, nil,
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transportcore.ErrInvalidRequestState
	}

	req.Status = model.RequestStatusCancelled

	s.logger.Info("transport request cancelled by student",
		zap.String("request_id", id.String()),
		zap.Int64("student_id", studentID),
	)

	return req, nil
}

// GetByID returns a request.
func (s *RequestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, transportcore.ErrRequestNotFound
	}
	return req, nil
}

// ListForReview returns a route's pending and waitlisted requests for a
// term, oldest first.
func (s *RequestService) ListForReview(ctx context.Context, routeID, termID int64) ([]*model.Request, error) {
	return s.requests.ListForReview(ctx, routeID, termID)
}

// ListByStudent returns a student's request history.
func (s *RequestService) ListByStudent(ctx context.Context, studentID int64) ([]*model.Request, error) {
	return s.requests.ListByStudent(ctx, studentID)
}

func (s *RequestService) getForReview(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, transportcore.ErrRequestNotFound
	}
	if req.Status.IsTerminal() {
		return nil, transportcore.ErrInvalidRequestState
	}
	return req, nil
}

func (s *RequestService) validateNewRequest(ctx context.Context, nr *NewRequest) error {
	var fields []transportcore.FieldError

	route, err := s.routes.GetByID(ctx, nr.RouteID)
	if err != nil {
		return fmt.Errorf("get route: %w", err)
	}
	if route == nil {
		return transportcore.ErrRouteNotFound
	}
	if !route.IsActive {
		fields = append(fields, transportcore.FieldError{Field: "route_id", Error: "route is not active"})
	}

	stop, err := s.routes.GetStopByID(ctx, nr.StopID)
	if err != nil {
		return fmt.Errorf("get stop: %w", err)
	}
	if stop == nil {
		return transportcore.ErrStopNotFound
	}
	if stop.RouteID != nr.RouteID {
		fields = append(fields, transportcore.FieldError{Field: "stop_id", Error: "stop does not belong to route"})
	}

	if nr.PreferredBusID != nil {
		bus, err := s.buses.GetByID(ctx, *nr.PreferredBusID)
		if err != nil {
			return fmt.Errorf("get preferred bus: %w", err)
		}
		if bus == nil {
			fields = append(fields, transportcore.FieldError{Field: "preferred_bus_id", Error: "bus not found"})
		} else {
			serves, err := s.routes.ServesRoute(ctx, nr.RouteID, bus.ID)
			if err != nil {
				return fmt.Errorf("check bus route: %w", err)
			}
			if !serves {
				fields = append(fields, transportcore.FieldError{Field: "preferred_bus_id", Error: "bus does not serve route"})
			}
			if nr.PreferredSeat != nil {
				label := model.NormalizeSeatLabel(*nr.PreferredSeat)
				if !bus.Layout.Contains(label) {
					fields = append(fields, transportcore.FieldError{Field: "preferred_seat", Error: "not in bus seat layout"})
				} else {
					nr.PreferredSeat = &label
				}
			}
		}
	} else if nr.PreferredSeat != nil {
		fields = append(fields, transportcore.FieldError{Field: "preferred_seat", Error: "preferred seat requires a preferred bus"})
	}

	if len(fields) > 0 {
		return transportcore.NewValidationError("invalid transport request", fields...)
	}
	return nil
}
