package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/repository/base"
)

type RouteRepository struct {
	*base.Repository
}

func NewRouteRepository(pool *pgxpool.Pool) *RouteRepository {
	return &RouteRepository{Repository: base.NewRepository(pool)}
}

// GetByID returns the route or nil when it does not exist.
func (r *RouteRepository) GetByID(ctx context.Context, id int64) (*model.Route, error) {
	query := `
		SELECT id, name, code, campuses, is_active, created_at, updated_at
		FROM routes
		WHERE id = $1
	`

	var route model.Route
	err := r.DB(ctx).QueryRow(ctx, query, id).Scan(
		&route.ID,
		&route.Name,
		&route.Code,
		&route.Campuses,
		&route.IsActive,
		&route.CreatedAt,
		&route.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get route by id: %w", err)
	}

	return &route, nil
}

// Lock takes a row lock on the route for the duration of the ambient
// transaction. Approvals lock the route before the authoritative capacity
// count so that two approvals on the same route serialize.
func (r *RouteRepository) Lock(ctx context.Context, id int64) (bool, error) {
	query := `SELECT id FROM routes WHERE id = $1 FOR UPDATE`

	var got int64
	err := r.DB(ctx).QueryRow(ctx, query, id).Scan(&got)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lock route: %w", err)
	}
	return true, nil
}

// GetStops returns the route's stops in position order.
func (r *RouteRepository) GetStops(ctx context.Context, routeID int64) ([]*model.Stop, error) {
	query := `
		SELECT id, route_id, name, address, position, pickup_time, dropoff_time, created_at
		FROM stops
		WHERE route_id = $1
		ORDER BY position
	`

	rows, err := r.DB(ctx).Query(ctx, query, routeID)
	if err != nil {
		return nil, fmt.Errorf("get stops: %w", err)
	}
	defer rows.Close()

	var stops []*model.Stop
	for rows.Next() {
		var stop model.Stop
		err := rows.Scan(
			&stop.ID,
			&stop.RouteID,
			&stop.Name,
			&stop.Address,
			&stop.Position,
			&stop.PickupTime,
			&stop.DropoffTime,
			&stop.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, &stop)
	}

	return stops, nil
}

// GetStopByID returns the stop or nil when it does not exist.
func (r *RouteRepository) GetStopByID(ctx context.Context, id int64) (*model.Stop, error) {
	query := `
		SELECT id, route_id, name, address, position, pickup_time, dropoff_time, created_at
		FROM stops
		WHERE id = $1
	`

	var stop model.Stop
	err := r.DB(ctx).QueryRow(ctx, query, id).Scan(
		&stop.ID,
		&stop.RouteID,
		&stop.Name,
		&stop.Address,
		&stop.Position,
		&stop.PickupTime,
		&stop.DropoffTime,
		&stop.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get stop by id: %w", err)
	}

	return &stop, nil
}

// GetBuses returns the active buses serving the route.
func (r *RouteRepository) GetBuses(ctx context.Context, routeID int64) ([]*model.Bus, error) {
	query := `
		SELECT b.id, b.number, b.capacity, b.layout_rows, b.layout_columns,
		       b.is_active, b.driver_name, b.driver_tel, b.created_at, b.updated_at
		FROM buses b
		JOIN route_buses rb ON rb.bus_id = b.id
		WHERE rb.route_id = $1 AND b.is_active
		ORDER BY b.number
	`

	rows, err := r.DB(ctx).Query(ctx, query, routeID)
	if err != nil {
		return nil, fmt.Errorf("get route buses: %w", err)
	}
	defer rows.Close()

	var buses []*model.Bus
	for rows.Next() {
		bus, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, bus)
	}

	return buses, nil
}

// TotalCapacity sums the capacity of the active buses serving the route.
// A route with no buses reports zero, which callers treat as "full".
func (r *RouteRepository) TotalCapacity(ctx context.Context, routeID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(b.capacity), 0)
		FROM buses b
		JOIN route_buses rb ON rb.bus_id = b.id
		WHERE rb.route_id = $1 AND b.is_active
	`

	var total int
	if err := r.DB(ctx).QueryRow(ctx, query, routeID).Scan(&total); err != nil {
		return 0, fmt.Errorf("route total capacity: %w", err)
	}
	return total, nil
}

// ServesRoute reports whether the bus is associated with the route.
func (r *RouteRepository) ServesRoute(ctx context.Context, routeID, busID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM route_buses
			WHERE route_id = $1 AND bus_id = $2
		)
	`

	var exists bool
	if err := r.DB(ctx).QueryRow(ctx, query, routeID, busID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check bus serves route: %w", err)
	}
	return exists, nil
}
