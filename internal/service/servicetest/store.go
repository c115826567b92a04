// Package servicetest provides an in-memory implementation of the service
// store interfaces for tests. It enforces the same uniqueness rules the
// database schema does (live request per student+term, active seat per
// bus+seat+term, active subscription per student+term), so contention
// behavior can be exercised without Postgres.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// Store holds the shared data. The per-interface views returned by
// RouteStore, BusStore, RequestStore and SubscriptionStore all read and
// write the same maps.
type Store struct {
	mu sync.Mutex
	// txMu serializes transactions, standing in for the route row lock.
	txMu sync.Mutex

	Routes     map[int64]*model.Route
	Stops      map[int64]*model.Stop
	Buses      map[int64]*model.Bus
	RouteBuses map[int64][]int64

	Requests      map[uuid.UUID]*model.Request
	Subscriptions map[uuid.UUID]*model.Subscription
}

func NewStore() *Store {
	return &Store{
		Routes:        make(map[int64]*model.Route),
		Stops:         make(map[int64]*model.Stop),
		Buses:         make(map[int64]*model.Bus),
		RouteBuses:    make(map[int64][]int64),
		Requests:      make(map[uuid.UUID]*model.Request),
		Subscriptions: make(map[uuid.UUID]*model.Subscription),
	}
}

func (s *Store) RouteStore() *RouteStore               { return &RouteStore{s} }
func (s *Store) BusStore() *BusStore                   { return &BusStore{s} }
func (s *Store) RequestStore() *RequestStore           { return &RequestStore{s} }
func (s *Store) SubscriptionStore() *SubscriptionStore { return &SubscriptionStore{s} }

// --- fixtures ---

func (s *Store) AddRoute(id int64, name string) *model.Route {
	r := &model.Route{ID: id, Name: name, IsActive: true}
	s.Routes[id] = r
	return r
}

func (s *Store) AddStop(id, routeID int64, name string) *model.Stop {
	st := &model.Stop{ID: id, RouteID: routeID, Name: name, Position: len(s.Stops) + 1}
	s.Stops[id] = st
	return st
}

func (s *Store) AddBus(id int64, number string, rows int, columns []string, routeIDs ...int64) *model.Bus {
	b := &model.Bus{
		ID:       id,
		Number:   number,
		Capacity: rows * len(columns),
		Layout:   model.SeatLayout{Rows: rows, Columns: columns},
		IsActive: true,
	}
	s.Buses[id] = b
	for _, rid := range routeIDs {
		s.RouteBuses[rid] = append(s.RouteBuses[rid], id)
	}
	return b
}

// AddRequest stores a request directly, bypassing validation.
func (s *Store) AddRequest(req *model.Request) *model.Request {
	cp := *req
	s.Requests[req.ID] = &cp
	return req
}

// --- Transactor ---

// RunInTx serializes transactions and rolls mutable state back when fn
// fails, mirroring what the database transaction gives the real services.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	savedRequests := snapshotMap(s.Requests)
	savedSubs := snapshotMap(s.Subscriptions)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.Requests = savedRequests
		s.Subscriptions = savedSubs
		s.mu.Unlock()
		return err
	}
	return nil
}

func snapshotMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

// --- RouteStore view ---

type RouteStore struct{ s *Store }

func (v *RouteStore) GetByID(_ context.Context, id int64) (*model.Route, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.Routes[id], nil
}

func (v *RouteStore) Lock(_ context.Context, id int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	_, ok := v.s.Routes[id]
	return ok, nil
}

func (v *RouteStore) GetStops(_ context.Context, routeID int64) ([]*model.Stop, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var stops []*model.Stop
	for _, st := range v.s.Stops {
		if st.RouteID == routeID {
			stops = append(stops, st)
		}
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].Position < stops[j].Position })
	return stops, nil
}

func (v *RouteStore) GetStopByID(_ context.Context, id int64) (*model.Stop, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.Stops[id], nil
}

func (v *RouteStore) GetBuses(_ context.Context, routeID int64) ([]*model.Bus, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var buses []*model.Bus
	for _, id := range v.s.RouteBuses[routeID] {
		if b := v.s.Buses[id]; b != nil && b.IsActive {
			buses = append(buses, b)
		}
	}
	return buses, nil
}

func (v *RouteStore) TotalCapacity(_ context.Context, routeID int64) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	total := 0
	for _, id := range v.s.RouteBuses[routeID] {
		if b := v.s.Buses[id]; b != nil && b.IsActive {
			total += b.Capacity
		}
	}
	return total, nil
}

func (v *RouteStore) ServesRoute(_ context.Context, routeID, busID int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, id := range v.s.RouteBuses[routeID] {
		if id == busID {
			return true, nil
		}
	}
	return false, nil
}

// --- BusStore view ---

type BusStore struct{ s *Store }

func (v *BusStore) GetByID(_ context.Context, id int64) (*model.Bus, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.Buses[id], nil
}

// --- RequestStore view ---

type RequestStore struct{ s *Store }

func (v *RequestStore) Create(_ context.Context, req *model.Request) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.Requests {
		if existing.StudentID == req.StudentID && existing.TermID == req.TermID && existing.Status.Blocks() {
			return transportcore.ErrDuplicateActiveRequest
		}
	}
	cp := *req
	v.s.Requests[req.ID] = &cp
	return nil
}

func (v *RequestStore) GetByID(_ context.Context, id uuid.UUID) (*model.Request, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	req, ok := v.s.Requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (v *RequestStore) HasBlocking(_ context.Context, studentID, termID int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, req := range v.s.Requests {
		if req.StudentID == studentID && req.TermID == termID && req.Status.Blocks() {
			return true, nil
		}
	}
	return false, nil
}

func (v *RequestStore) Transition(
	_ context.Context,
	id uuid.UUID,
	from []model.RequestStatus,
	to model.RequestStatus,
	reviewedAt *time.Time,
	reason *string,
) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	req, ok := v.s.Requests[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, f := range from {
		if req.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	req.Status = to
	if reviewedAt != nil {
		req.ReviewedAt = reviewedAt
	}
	if reason != nil {
		req.RejectionReason = reason
	}
	return true, nil
}

func (v *RequestStore) ListForReview(_ context.Context, routeID, termID int64) ([]*model.Request, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var reqs []*model.Request
	for _, req := range v.s.Requests {
		if req.RouteID == routeID && req.TermID == termID &&
			(req.Status == model.RequestStatusPending || req.Status == model.RequestStatusWaitlisted) {
			cp := *req
			reqs = append(reqs, &cp)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequestedAt.Before(reqs[j].RequestedAt) })
	return reqs, nil
}

func (v *RequestStore) ListByStudent(_ context.Context, studentID int64) ([]*model.Request, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var reqs []*model.Request
	for _, req := range v.s.Requests {
		if req.StudentID == studentID {
			cp := *req
			reqs = append(reqs, &cp)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequestedAt.After(reqs[j].RequestedAt) })
	return reqs, nil
}

// --- SubscriptionStore view ---

type SubscriptionStore struct{ s *Store }

func (v *SubscriptionStore) Create(_ context.Context, sub *model.Subscription) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.Subscriptions {
		if existing.Status != model.SubscriptionStatusActive {
			continue
		}
		if sub.SeatLabel != nil && existing.SeatLabel != nil &&
			existing.BusID == sub.BusID && existing.TermID == sub.TermID &&
			*existing.SeatLabel == *sub.SeatLabel {
			return transportcore.ErrSeatAlreadyTaken
		}
		if existing.StudentID == sub.StudentID && existing.TermID == sub.TermID {
			return transportcore.ErrAlreadySubscribed
		}
	}
	cp := *sub
	v.s.Subscriptions[sub.ID] = &cp
	return nil
}

func (v *SubscriptionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sub, ok := v.s.Subscriptions[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (v *SubscriptionStore) GetActiveByStudent(_ context.Context, studentID, termID int64) (*model.Subscription, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, sub := range v.s.Subscriptions {
		if sub.StudentID == studentID && sub.TermID == termID && sub.Status == model.SubscriptionStatusActive {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (v *SubscriptionStore) CountActiveByRoute(_ context.Context, routeID, termID int64) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	count := 0
	for _, sub := range v.s.Subscriptions {
		if sub.RouteID == routeID && sub.TermID == termID && sub.Status == model.SubscriptionStatusActive {
			count++
		}
	}
	return count, nil
}

func (v *SubscriptionStore) OccupiedSeats(_ context.Context, busID, termID int64) ([]string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var seats []string
	for _, sub := range v.s.Subscriptions {
		if sub.BusID == busID && sub.TermID == termID &&
			sub.Status == model.SubscriptionStatusActive && sub.SeatLabel != nil {
			seats = append(seats, *sub.SeatLabel)
		}
	}
	sort.Strings(seats)
	return seats, nil
}

func (v *SubscriptionStore) SeatTaken(_ context.Context, busID int64, seatLabel string, termID int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, sub := range v.s.Subscriptions {
		if sub.BusID == busID && sub.TermID == termID &&
			sub.Status == model.SubscriptionStatusActive &&
			sub.SeatLabel != nil && *sub.SeatLabel == seatLabel {
			return true, nil
		}
	}
	return false, nil
}

func (v *SubscriptionStore) Cancel(
	_ context.Context,
	id uuid.UUID,
	by model.ActorKind,
	reason *string,
	at time.Time,
) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sub, ok := v.s.Subscriptions[id]
	if !ok || sub.Status != model.SubscriptionStatusActive {
		return false, nil
	}
	sub.Status = model.SubscriptionStatusCancelled
	sub.CancelledAt = &at
	sub.CancelledBy = &by
	sub.CancelReason = reason
	return true, nil
}

func (v *SubscriptionStore) ListByStudent(_ context.Context, studentID int64) ([]*model.Subscription, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var subs []*model.Subscription
	for _, sub := range v.s.Subscriptions {
		if sub.StudentID == studentID {
			cp := *sub
			subs = append(subs, &cp)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].StartedAt.After(subs[j].StartedAt) })
	return subs, nil
}
