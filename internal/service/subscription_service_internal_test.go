package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/service/servicetest"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// The approval workflow checks for an active subscription before calling
// createFromRequest, so a per-student unique violation surfacing from the
// store means that check was bypassed. It must come back as an invariant
// violation, not as the user-facing AlreadySubscribed conflict.
func TestCreateFromRequestInvariantViolation(t *testing.T) {
	st := servicetest.NewStore()
	logger := zap.NewNop()
	svc := NewSubscriptionService(st.SubscriptionStore(), notify.NewLogNotifier(logger), logger)
	ctx := context.Background()

	err := st.SubscriptionStore().Create(ctx, &model.Subscription{
		ID:        uuid.New(),
		RequestID: uuid.New(),
		StudentID: 42,
		TermID:    2026,
		RouteID:   1,
		StopID:    10,
		BusID:     100,
		Status:    model.SubscriptionStatusActive,
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	req := &model.Request{
		ID:        uuid.New(),
		StudentID: 42,
		TermID:    2026,
		RouteID:   1,
		StopID:    10,
		Status:    model.RequestStatusPending,
	}
	_, err = svc.createFromRequest(ctx, req, 100, nil)
	if !transportcore.IsInvariantViolation(err) {
		t.Errorf("err = %v, want invariant violation", err)
	}
}
