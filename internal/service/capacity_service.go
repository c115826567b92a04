package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// CapacityService answers how full a route or bus is for a term. It is a
// pure query layer over current subscription state; occupancy is never
// cached across writes.
type CapacityService struct {
	routes RouteStore
	buses  BusStore
	subs   SubscriptionStore
	logger *zap.Logger
}

func NewCapacityService(routes RouteStore, buses BusStore, subs SubscriptionStore, logger *zap.Logger) *CapacityService {
	return &CapacityService{
		routes: routes,
		buses:  buses,
		subs:   subs,
		logger: logger,
	}
}

// RouteAvailability computes the capacity summary for a route+term. A route
// with no associated buses reports zero capacity and is full; that means
// "not yet provisioned", not invalid input. Subscriptions without a fixed
// seat still consume one unit each.
func (s *CapacityService) RouteAvailability(ctx context.Context, routeID, termID int64) (*model.RouteAvailability, error) {
	route, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	if route == nil {
		return nil, transportcore.ErrRouteNotFound
	}

	total, err := s.routes.TotalCapacity(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("route capacity: %w", err)
	}

	occupied, err := s.subs.CountActiveByRoute(ctx, routeID, termID)
	if err != nil {
		return nil, fmt.Errorf("count occupied: %w", err)
	}

	available := total - occupied
	return &model.RouteAvailability{
		RouteID:        routeID,
		TermID:         termID,
		TotalCapacity:  total,
		OccupiedSeats:  occupied,
		AvailableSeats: available,
		IsFull:         available <= 0,
	}, nil
}

// BusOccupancy returns the seat labels held by active subscriptions on a
// bus for a term. Any layout label not in the returned set is available.
func (s *CapacityService) BusOccupancy(ctx context.Context, busID, termID int64) ([]string, error) {
	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("get bus: %w", err)
	}
	if bus == nil {
		return nil, transportcore.ErrBusNotFound
	}

	seats, err := s.subs.OccupiedSeats(ctx, busID, termID)
	if err != nil {
		return nil, fmt.Errorf("occupied seats: %w", err)
	}
	return seats, nil
}
