package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

func TestRouteAvailability(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	avail, err := f.capacity.RouteAvailability(ctx, 1, 2026)
	if err != nil {
		t.Fatalf("RouteAvailability: %v", err)
	}
	if avail.TotalCapacity != 40 {
		t.Errorf("TotalCapacity = %d, want 40", avail.TotalCapacity)
	}
	if avail.OccupiedSeats != 0 || avail.AvailableSeats != 40 || avail.IsFull {
		t.Errorf("empty route reported %+v", avail)
	}

	// Two active subscriptions, one of them seatless. Both consume capacity.
	subStore := f.store.SubscriptionStore()
	for i, seat := range []*string{strPtr("1A"), nil} {
		err := subStore.Create(ctx, &model.Subscription{
			ID:        uuid.New(),
			RequestID: uuid.New(),
			StudentID: int64(500 + i),
			TermID:    2026,
			RouteID:   1,
			StopID:    10,
			BusID:     100,
			SeatLabel: seat,
			Status:    model.SubscriptionStatusActive,
		})
		if err != nil {
			t.Fatalf("seed subscription: %v", err)
		}
	}

	avail, err = f.capacity.RouteAvailability(ctx, 1, 2026)
	if err != nil {
		t.Fatalf("RouteAvailability: %v", err)
	}
	if avail.OccupiedSeats != 2 || avail.AvailableSeats != 38 {
		t.Errorf("occupied = %d, available = %d, want 2 and 38", avail.OccupiedSeats, avail.AvailableSeats)
	}
}

func TestRouteAvailabilityNoBuses(t *testing.T) {
	f := newFixture(t)
	f.store.AddRoute(2, "Unprovisioned")

	avail, err := f.capacity.RouteAvailability(context.Background(), 2, 2026)
	if err != nil {
		t.Fatalf("RouteAvailability: %v", err)
	}
	if avail.TotalCapacity != 0 || !avail.IsFull {
		t.Errorf("route without buses: %+v, want zero capacity and full", avail)
	}
}

func TestRouteAvailabilityUnknownRoute(t *testing.T) {
	f := newFixture(t)

	_, err := f.capacity.RouteAvailability(context.Background(), 99, 2026)
	if !errors.Is(err, transportcore.ErrRouteNotFound) {
		t.Errorf("err = %v, want ErrRouteNotFound", err)
	}
}

func TestBusOccupancy(t *testing.T) {
	f := newFixture(t)
	f.seedRoute()
	ctx := context.Background()

	if _, err := f.capacity.BusOccupancy(ctx, 999, 2026); !errors.Is(err, transportcore.ErrBusNotFound) {
		t.Errorf("unknown bus err = %v, want ErrBusNotFound", err)
	}

	err := f.store.SubscriptionStore().Create(ctx, &model.Subscription{
		ID:        uuid.New(),
		RequestID: uuid.New(),
		StudentID: 7,
		TermID:    2026,
		RouteID:   1,
		StopID:    10,
		BusID:     100,
		SeatLabel: strPtr("3B"),
		Status:    model.SubscriptionStatusActive,
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	seats, err := f.capacity.BusOccupancy(ctx, 100, 2026)
	if err != nil {
		t.Fatalf("BusOccupancy: %v", err)
	}
	if len(seats) != 1 || seats[0] != "3B" {
		t.Errorf("seats = %v, want [3B]", seats)
	}

	// Other terms do not leak in.
	seats, err = f.capacity.BusOccupancy(ctx, 100, 2027)
	if err != nil {
		t.Fatalf("BusOccupancy: %v", err)
	}
	if len(seats) != 0 {
		t.Errorf("seats for other term = %v, want empty", seats)
	}
}
