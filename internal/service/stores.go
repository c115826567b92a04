package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hredostate/yebo-transport/internal/model"
)

// Store interfaces the services depend on. The pgx repositories implement
// them; tests substitute in-memory fakes that enforce the same uniqueness
// rules the database does.

type RouteStore interface {
	GetByID(ctx context.Context, id int64) (*model.Route, error)
	// Lock serializes concurrent approvals on the same route for the
	// duration of the ambient transaction.
	Lock(ctx context.Context, id int64) (bool, error)
	GetStops(ctx context.Context, routeID int64) ([]*model.Stop, error)
	GetStopByID(ctx context.Context, id int64) (*model.Stop, error)
	GetBuses(ctx context.Context, routeID int64) ([]*model.Bus, error)
	TotalCapacity(ctx context.Context, routeID int64) (int, error)
	ServesRoute(ctx context.Context, routeID, busID int64) (bool, error)
}

type BusStore interface {
	GetByID(ctx context.Context, id int64) (*model.Bus, error)
}

type RequestStore interface {
	Create(ctx context.Context, req *model.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	HasBlocking(ctx context.Context, studentID, termID int64) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus, reviewedAt *time.Time, reason *string) (bool, error)
	ListForReview(ctx context.Context, routeID, termID int64) ([]*model.Request, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*model.Request, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *model.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	GetActiveByStudent(ctx context.Context, studentID, termID int64) (*model.Subscription, error)
	CountActiveByRoute(ctx context.Context, routeID, termID int64) (int, error)
	OccupiedSeats(ctx context.Context, busID, termID int64) ([]string, error)
	SeatTaken(ctx context.Context, busID int64, seatLabel string, termID int64) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID, by model.ActorKind, reason *string, at time.Time) (bool, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*model.Subscription, error)
}

// Transactor runs fn as one atomic unit. Store calls made with the context
// fn receives share the transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
