package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/repository/base"
)

type BusRepository struct {
	*base.Repository
}

func NewBusRepository(pool *pgxpool.Pool) *BusRepository {
	return &BusRepository{Repository: base.NewRepository(pool)}
}

// GetByID returns the bus or nil when it does not exist.
func (r *BusRepository) GetByID(ctx context.Context, id int64) (*model.Bus, error) {
	query := `
		SELECT id, number, capacity, layout_rows, layout_columns,
		       is_active, driver_name, driver_tel, created_at, updated_at
		FROM buses
		WHERE id = $1
	`

	bus, err := scanBus(r.DB(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get bus by id: %w", err)
	}

	return bus, nil
}

// scanBus reads one bus row. The seat layout is stored denormalized as a row
// count plus a column-label array.
func scanBus(row pgx.Row) (*model.Bus, error) {
	var bus model.Bus
	err := row.Scan(
		&bus.ID,
		&bus.Number,
		&bus.Capacity,
		&bus.Layout.Rows,
		&bus.Layout.Columns,
		&bus.IsActive,
		&bus.DriverName,
		&bus.DriverTel,
		&bus.CreatedAt,
		&bus.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan bus: %w", err)
	}
	return &bus, nil
}
