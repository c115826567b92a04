package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// SubscriptionService manages the durable seat grants. Creation happens only
// inside the approval workflow; cancellation is the one operation students
// and operators invoke directly.
type SubscriptionService struct {
	subs     SubscriptionStore
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewSubscriptionService(subs SubscriptionStore, notifier notify.Notifier, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		subs:     subs,
		notifier: notifier,
		logger:   logger,
	}
}

// createFromRequest materializes an approved request into an active
// subscription. It runs inside the approval transaction. The approval
// workflow has already verified the student holds no active subscription,
// so a per-student unique violation at this point means that check was
// bypassed: an invariant violation, not a user error.
func (s *SubscriptionService) createFromRequest(ctx context.Context, req *model.Request, busID int64, seatLabel *string) (*model.Subscription, error) {
	sub := &model.Subscription{
		ID:        uuid.New(),
		RequestID: req.ID,
		StudentID: req.StudentID,
		TermID:    req.TermID,
		RouteID:   req.RouteID,
		StopID:    req.StopID,
		BusID:     busID,
		SeatLabel: seatLabel,
		Status:    model.SubscriptionStatusActive,
		StartedAt: time.Now().UTC(),
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		if errors.Is(err, transportcore.ErrAlreadySubscribed) {
			err = transportcore.NewInvariantViolation(
				"second active subscription for student %d in term %d reached the store",
				req.StudentID, req.TermID,
			)
			s.logger.Error("subscription invariant violated",
				zap.String("request_id", req.ID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	return sub, nil
}

// Cancel terminates an active subscription and releases its seat
// immediately. Students may cancel only their own; operators may cancel any,
// with the actor and reason recorded either way.
func (s *SubscriptionService) Cancel(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, transportcore.ErrSubscriptionNotFound
	}
	if actor.Kind == model.ActorStudent && sub.StudentID != actor.UserID {
		return nil, transportcore.ErrNotPermitted
	}
	if sub.Status != model.SubscriptionStatusActive {
		return nil, transportcore.ErrSubscriptionNotActive
	}

	reason = strings.TrimSpace(reason)
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	now := time.Now().UTC()
	ok, err := s.subs.Cancel(ctx, id, actor.Kind, reasonPtr, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transportcore.ErrSubscriptionNotActive
	}

	sub.Status = model.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.CancelledBy = &actor.Kind
	sub.CancelReason = reasonPtr

	s.logger.Info("subscription cancelled",
		zap.String("subscription_id", id.String()),
		zap.Int64("student_id", sub.StudentID),
		zap.String("cancelled_by", string(actor.Kind)),
	)

	ev := notify.NewEvent(notify.OutcomeCancelled)
	ev.SubscriptionID = &sub.ID
	ev.StudentID = sub.StudentID
	ev.TermID = sub.TermID
	ev.RouteID = sub.RouteID
	ev.Reason = reason
	s.notifier.Notify(ctx, ev)

	return sub, nil
}

// GetByID returns a subscription.
func (s *SubscriptionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, transportcore.ErrSubscriptionNotFound
	}
	return sub, nil
}

// ListByStudent returns a student's subscription history.
func (s *SubscriptionService) ListByStudent(ctx context.Context, studentID int64) ([]*model.Subscription, error) {
	return s.subs.ListByStudent(ctx, studentID)
}
