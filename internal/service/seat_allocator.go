package service

import (
	"context"
	"fmt"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// SeatAllocator decides whether a (bus, seat label, term) triple may be
// claimed. Its checks are the fast path; the partial unique index on active
// subscriptions is the guard of record, so two approvals racing for the same
// seat cannot both commit even if both pass CheckClaim.
type SeatAllocator struct {
	buses BusStore
	subs  SubscriptionStore
}

func NewSeatAllocator(buses BusStore, subs SubscriptionStore) *SeatAllocator {
	return &SeatAllocator{buses: buses, subs: subs}
}

// IsSeatFree reports whether seatLabel exists in the bus's layout and no
// active subscription holds it for the term. An unknown label is simply not
// free.
func (a *SeatAllocator) IsSeatFree(ctx context.Context, busID int64, seatLabel string, termID int64) (bool, error) {
	bus, err := a.buses.GetByID(ctx, busID)
	if err != nil {
		return false, fmt.Errorf("get bus: %w", err)
	}
	if bus == nil {
		return false, transportcore.ErrBusNotFound
	}

	label := model.NormalizeSeatLabel(seatLabel)
	if !bus.Layout.Contains(label) {
		return false, nil
	}

	taken, err := a.subs.SeatTaken(ctx, busID, label, termID)
	if err != nil {
		return false, fmt.Errorf("check seat: %w", err)
	}
	return !taken, nil
}

// CheckClaim validates a claim on (bus, seat, term) and returns the
// canonical label to store. Run it inside the approval transaction; the
// subscription insert that follows is the atomic claim itself, and the
// unique index rejects a lost race with ErrSeatAlreadyTaken.
func (a *SeatAllocator) CheckClaim(ctx context.Context, bus *model.Bus, seatLabel string, termID int64) (string, error) {
	label := model.NormalizeSeatLabel(seatLabel)
	if !bus.Layout.Contains(label) {
		return "", transportcore.NewValidationError(
			fmt.Sprintf("seat %q does not exist on bus %s", label, bus.Number),
			transportcore.FieldError{Field: "seat_label", Error: "not in bus seat layout"},
		)
	}

	taken, err := a.subs.SeatTaken(ctx, bus.ID, label, termID)
	if err != nil {
		return "", fmt.Errorf("check seat: %w", err)
	}
	if taken {
		return "", transportcore.ErrSeatAlreadyTaken
	}

	return label, nil
}
