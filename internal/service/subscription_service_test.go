package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

func approvedSubscription(t *testing.T, f *fixture, studentID int64) *model.Subscription {
	t.Helper()
	req := f.pendingRequest(studentID, 2026)
	sub, err := f.approval.Approve(context.Background(), req.ID, 100, nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return sub
}

func TestCancelSubscription(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()
	sub := approvedSubscription(t, f, 42)

	actor := model.Actor{Kind: model.ActorStudent, UserID: 42}
	got, err := f.subs.Cancel(ctx, sub.ID, actor, "changed plans")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != model.SubscriptionStatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if got.CancelledBy == nil || *got.CancelledBy != model.ActorStudent {
		t.Errorf("cancelled_by = %v, want student", got.CancelledBy)
	}
	if got.CancelReason == nil || *got.CancelReason != "changed plans" {
		t.Errorf("reason = %v, want 'changed plans'", got.CancelReason)
	}
	if got.CancelledAt == nil {
		t.Error("CancelledAt not set")
	}

	outcomes := f.notifier.outcomes()
	if outcomes[len(outcomes)-1] != notify.OutcomeCancelled {
		t.Errorf("last outcome = %v, want cancelled", outcomes[len(outcomes)-1])
	}
}

func TestCancelSubscriptionOwnership(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()
	sub := approvedSubscription(t, f, 42)

	other := model.Actor{Kind: model.ActorStudent, UserID: 99}
	if _, err := f.subs.Cancel(ctx, sub.ID, other, ""); !errors.Is(err, transportcore.ErrNotPermitted) {
		t.Errorf("other student err = %v, want ErrNotPermitted", err)
	}

	// Operators may cancel any subscription.
	op := model.Actor{Kind: model.ActorOperator, UserID: 7}
	got, err := f.subs.Cancel(ctx, sub.ID, op, "route discontinued")
	if err != nil {
		t.Fatalf("operator Cancel: %v", err)
	}
	if got.CancelledBy == nil || *got.CancelledBy != model.ActorOperator {
		t.Errorf("cancelled_by = %v, want operator", got.CancelledBy)
	}
}

func TestCancelSubscriptionTwice(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()
	sub := approvedSubscription(t, f, 42)

	actor := model.Actor{Kind: model.ActorStudent, UserID: 42}
	if _, err := f.subs.Cancel(ctx, sub.ID, actor, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := f.subs.Cancel(ctx, sub.ID, actor, ""); !errors.Is(err, transportcore.ErrSubscriptionNotActive) {
		t.Errorf("second Cancel err = %v, want ErrSubscriptionNotActive", err)
	}
}

func TestCancelSubscriptionNotFound(t *testing.T) {
	f := newFixture(t)

	actor := model.Actor{Kind: model.ActorOperator, UserID: 7}
	_, err := f.subs.Cancel(context.Background(), uuid.New(), actor, "")
	if !errors.Is(err, transportcore.ErrSubscriptionNotFound) {
		t.Errorf("err = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestSubscriptionFreesCapacity(t *testing.T) {
	f := newFixture(t)
	f.store.AddRoute(1, "Shuttle")
	f.store.AddStop(10, 1, "Main Gate")
	f.store.AddBus(100, "KCD 303Z", 1, []string{"A"}, 1) // capacity 1
	ctx := context.Background()

	sub := approvedSubscription(t, f, 42)

	avail, err := f.capacity.RouteAvailability(ctx, 1, 2026)
	if err != nil {
		t.Fatalf("RouteAvailability: %v", err)
	}
	if !avail.IsFull {
		t.Errorf("route should be full: %+v", avail)
	}

	actor := model.Actor{Kind: model.ActorStudent, UserID: 42}
	if _, err := f.subs.Cancel(ctx, sub.ID, actor, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	avail, err = f.capacity.RouteAvailability(ctx, 1, 2026)
	if err != nil {
		t.Fatalf("RouteAvailability: %v", err)
	}
	if avail.IsFull || avail.AvailableSeats != 1 {
		t.Errorf("capacity not released: %+v", avail)
	}
}
