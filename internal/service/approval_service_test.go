package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/service"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

func TestApprove(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()
	req := f.pendingRequest(42, 2026)

	sub, err := f.approval.Approve(ctx, req.ID, 100, strPtr("5a"))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if sub.Status != model.SubscriptionStatusActive {
		t.Errorf("subscription status = %s, want active", sub.Status)
	}
	if sub.SeatLabel == nil || *sub.SeatLabel != "5A" {
		t.Errorf("seat = %v, want normalized 5A", sub.SeatLabel)
	}
	if sub.RequestID != req.ID || sub.StudentID != 42 || sub.BusID != 100 {
		t.Errorf("subscription fields wrong: %+v", sub)
	}

	got, err := f.store.RequestStore().GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.RequestStatusApproved {
		t.Errorf("request status = %s, want approved", got.Status)
	}
	if got.ReviewedAt == nil {
		t.Error("ReviewedAt not set")
	}

	outcomes := f.notifier.outcomes()
	if len(outcomes) != 1 || outcomes[0] != notify.OutcomeApproved {
		t.Errorf("outcomes = %v, want [approved]", outcomes)
	}
}

func TestApproveWithoutSeat(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()
	req := f.pendingRequest(42, 2026)

	sub, err := f.approval.Approve(ctx, req.ID, 100, nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if sub.SeatLabel != nil {
		t.Errorf("seat = %v, want nil", sub.SeatLabel)
	}

	// Seatless riders still consume capacity.
	avail, err := f.capacity.RouteAvailability(ctx, 1, 2026)
	if err != nil {
		t.Fatalf("RouteAvailability: %v", err)
	}
	if avail.OccupiedSeats != 1 {
		t.Errorf("occupied = %d, want 1", avail.OccupiedSeats)
	}
}

func TestApproveSeatConflict(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	first := f.pendingRequest(42, 2026)
	if _, err := f.approval.Approve(ctx, first.ID, 100, strPtr("5A")); err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	second := f.pendingRequest(43, 2026)
	_, err := f.approval.Approve(ctx, second.ID, 100, strPtr("5A"))
	if !errors.Is(err, transportcore.ErrSeatAlreadyTaken) {
		t.Fatalf("err = %v, want ErrSeatAlreadyTaken", err)
	}

	// The failed approval must leave no trace.
	got, err := f.store.RequestStore().GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.RequestStatusPending {
		t.Errorf("request status after failed approval = %s, want pending", got.Status)
	}
	if sub, _ := f.store.SubscriptionStore().GetActiveByStudent(ctx, 43, 2026); sub != nil {
		t.Errorf("failed approval created subscription %+v", sub)
	}
}

func TestApproveAlreadySubscribed(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	first := f.pendingRequest(42, 2026)
	if _, err := f.approval.Approve(ctx, first.ID, 100, nil); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// A second request for the same student should never exist thanks to the
	// live-request rule, but the approval still refuses it independently.
	stray := f.store.AddRequest(&model.Request{
		ID: uuid.New(), StudentID: 42, TermID: 2026, RouteID: 1, StopID: 10,
		Status: model.RequestStatusPending,
	})
	if _, err := f.approval.Approve(ctx, stray.ID, 100, nil); !errors.Is(err, transportcore.ErrAlreadySubscribed) {
		t.Errorf("err = %v, want ErrAlreadySubscribed", err)
	}
}

func TestApproveRouteFull(t *testing.T) {
	f := newFixture(t)
	f.store.AddRoute(1, "Shuttle")
	f.store.AddStop(10, 1, "Main Gate")
	f.store.AddBus(100, "KCD 303Z", 1, []string{"A"}, 1) // capacity 1
	ctx := context.Background()

	first := f.pendingRequest(42, 2026)
	if _, err := f.approval.Approve(ctx, first.ID, 100, nil); err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	second := f.pendingRequest(43, 2026)
	if _, err := f.approval.Approve(ctx, second.ID, 100, nil); !errors.Is(err, transportcore.ErrRouteFull) {
		t.Errorf("err = %v, want ErrRouteFull", err)
	}
}

func TestApproveInvalidStates(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	t.Run("unknown request", func(t *testing.T) {
		_, err := f.approval.Approve(ctx, uuid.New(), 100, nil)
		if !errors.Is(err, transportcore.ErrRequestNotFound) {
			t.Errorf("err = %v, want ErrRequestNotFound", err)
		}
	})

	t.Run("rejected request", func(t *testing.T) {
		req := f.pendingRequest(50, 2026)
		if _, err := f.requests.Reject(ctx, req.ID, "late"); err != nil {
			t.Fatalf("Reject: %v", err)
		}
		if _, err := f.approval.Approve(ctx, req.ID, 100, nil); !errors.Is(err, transportcore.ErrInvalidRequestState) {
			t.Errorf("err = %v, want ErrInvalidRequestState", err)
		}
	})

	t.Run("unknown bus", func(t *testing.T) {
		req := f.pendingRequest(51, 2026)
		if _, err := f.approval.Approve(ctx, req.ID, 999, nil); !errors.Is(err, transportcore.ErrBusNotFound) {
			t.Errorf("err = %v, want ErrBusNotFound", err)
		}
	})

	t.Run("bus off route", func(t *testing.T) {
		f.store.AddRoute(2, "Other Route")
		f.store.AddBus(200, "KCE 404A", 5, []string{"A", "B"}, 2)
		req := f.pendingRequest(52, 2026)
		if _, err := f.approval.Approve(ctx, req.ID, 200, nil); !transportcore.IsValidation(err) {
			t.Errorf("err = %v, want validation error", err)
		}
	})
}

func TestApproveWaitlistedRequest(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()
	req := f.pendingRequest(42, 2026)

	if _, err := f.requests.Waitlist(ctx, req.ID); err != nil {
		t.Fatalf("Waitlist: %v", err)
	}
	if _, err := f.approval.Approve(ctx, req.ID, 100, nil); err != nil {
		t.Errorf("approving waitlisted request: %v", err)
	}
}

func TestCancellationFreesSeat(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	first := f.pendingRequest(42, 2026)
	sub, err := f.approval.Approve(ctx, first.ID, 100, strPtr("5A"))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	actor := model.Actor{Kind: model.ActorStudent, UserID: 42}
	if _, err := f.subs.Cancel(ctx, sub.ID, actor, "moving off campus"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// The released seat is immediately claimable by someone else.
	second := f.pendingRequest(43, 2026)
	got, err := f.approval.Approve(ctx, second.ID, 100, strPtr("5A"))
	if err != nil {
		t.Fatalf("re-approve on freed seat: %v", err)
	}
	if got.SeatLabel == nil || *got.SeatLabel != "5A" {
		t.Errorf("seat = %v, want 5A", got.SeatLabel)
	}
}

func TestBulkApprovePartialSuccess(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	a := f.pendingRequest(42, 2026)
	b := f.pendingRequest(43, 2026)
	c := f.pendingRequest(44, 2026)

	results := f.approval.BulkApprove(ctx, []service.BulkApprovalItem{
		{RequestID: a.ID, BusID: int64Ptr(100), SeatLabel: strPtr("1A")},
		{RequestID: b.ID, BusID: int64Ptr(100), SeatLabel: strPtr("1A")}, // conflicts with a
		{RequestID: c.ID, BusID: int64Ptr(100), SeatLabel: strPtr("1B")},
	})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Err != nil || results[0].Subscription == nil {
		t.Errorf("first item: err = %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, transportcore.ErrSeatAlreadyTaken) {
		t.Errorf("second item err = %v, want ErrSeatAlreadyTaken", results[1].Err)
	}
	if results[2].Err != nil || results[2].Subscription == nil {
		t.Errorf("third item: err = %v", results[2].Err)
	}

	// The conflicting request is untouched and can be retried with another
	// seat.
	got, err := f.store.RequestStore().GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.RequestStatusPending {
		t.Errorf("conflicting request status = %s, want pending", got.Status)
	}
}

func TestBulkApprovePreferenceFallback(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	withPref := f.store.AddRequest(&model.Request{
		ID: uuid.New(), StudentID: 42, TermID: 2026, RouteID: 1, StopID: 10,
		PreferredBusID: int64Ptr(100), PreferredSeat: strPtr("2C"),
		Status: model.RequestStatusPending,
	})
	noPref := f.pendingRequest(43, 2026)

	results := f.approval.BulkApprove(ctx, []service.BulkApprovalItem{
		{RequestID: withPref.ID},
		{RequestID: noPref.ID},
	})
	if results[0].Err != nil {
		t.Fatalf("preference fallback: %v", results[0].Err)
	}
	if results[0].Subscription.SeatLabel == nil || *results[0].Subscription.SeatLabel != "2C" {
		t.Errorf("seat = %v, want preferred 2C", results[0].Subscription.SeatLabel)
	}
	if !transportcore.IsValidation(results[1].Err) {
		t.Errorf("no bus anywhere: err = %v, want validation error", results[1].Err)
	}
}

func TestBulkApproveSeatNotCarriedToOtherBus(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	f.store.AddBus(200, "KCE 404A", 3, []string{"A", "B"}, 1)
	ctx := context.Background()

	req := f.store.AddRequest(&model.Request{
		ID: uuid.New(), StudentID: 42, TermID: 2026, RouteID: 1, StopID: 10,
		PreferredBusID: int64Ptr(100), PreferredSeat: strPtr("2C"),
		Status: model.RequestStatusPending,
	})

	// The operator reassigns to bus 200; the seat preference belongs to bus
	// 100 and must not carry over.
	results := f.approval.BulkApprove(ctx, []service.BulkApprovalItem{
		{RequestID: req.ID, BusID: int64Ptr(200)},
	})
	if results[0].Err != nil {
		t.Fatalf("approve on reassigned bus: %v", results[0].Err)
	}
	sub := results[0].Subscription
	if sub.BusID != 200 {
		t.Errorf("bus = %d, want 200", sub.BusID)
	}
	if sub.SeatLabel != nil {
		t.Errorf("seat = %q, want none", *sub.SeatLabel)
	}
}

func TestConcurrentApprovalsSameSeat(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	const n = 8
	reqs := make([]*model.Request, n)
	for i := range reqs {
		reqs[i] = f.pendingRequest(int64(1000+i), 2026)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.approval.Approve(ctx, reqs[i].ID, 100, strPtr("7D"))
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, transportcore.ErrSeatAlreadyTaken):
		default:
			t.Errorf("approval %d: unexpected err %v", i, err)
		}
	}
	if wins != 1 {
		t.Errorf("%d approvals won the seat, want exactly 1", wins)
	}

	taken, err := f.store.SubscriptionStore().SeatTaken(ctx, 100, "7D", 2026)
	if err != nil {
		t.Fatalf("SeatTaken: %v", err)
	}
	if !taken {
		t.Error("seat 7D not held after the race")
	}
}
