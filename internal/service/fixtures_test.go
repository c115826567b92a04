package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/service"
	"github.com/hredostate/yebo-transport/internal/service/servicetest"
)

// capturingNotifier records emitted events for assertions.
type capturingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *capturingNotifier) Notify(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *capturingNotifier) outcomes() []notify.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Outcome, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Outcome)
	}
	return out
}

type fixture struct {
	store    *servicetest.Store
	notifier *capturingNotifier

	capacity *service.CapacityService
	requests *service.RequestService
	subs     *service.SubscriptionService
	approval *service.ApprovalService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := servicetest.NewStore()
	logger := zap.NewNop()
	n := &capturingNotifier{}

	capacity := service.NewCapacityService(st.RouteStore(), st.BusStore(), st.SubscriptionStore(), logger)
	allocator := service.NewSeatAllocator(st.BusStore(), st.SubscriptionStore())
	subs := service.NewSubscriptionService(st.SubscriptionStore(), n, logger)
	requests := service.NewRequestService(st.RequestStore(), st.RouteStore(), st.BusStore(), capacity, n, logger)
	approval := service.NewApprovalService(
		st.RequestStore(), subs, st.RouteStore(), st.BusStore(),
		allocator, st, n, logger, nil,
	)

	return &fixture{
		store:    st,
		notifier: n,
		capacity: capacity,
		requests: requests,
		subs:     subs,
		approval: approval,
	}
}

// seedRoute provisions route 1 with stop 10 and bus 100 (10 rows, A to D).
func (f *fixture) seedRoute() {
	f.store.AddRoute(1, "North Campus Express")
	f.store.AddStop(10, 1, "Main Gate")
	f.store.AddBus(100, "KCB 101X", 10, []string{"A", "B", "C", "D"}, 1)
}

// pendingRequest files a pending request directly in the store.
func (f *fixture) pendingRequest(studentID, termID int64) *model.Request {
	return f.store.AddRequest(&model.Request{
		ID:          uuid.New(),
		StudentID:   studentID,
		TermID:      termID,
		RouteID:     1,
		StopID:      10,
		Status:      model.RequestStatusPending,
		RequestedAt: time.Now().UTC(),
	})
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }
