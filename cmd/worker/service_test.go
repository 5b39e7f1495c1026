package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/notify"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
)

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

type recordingReconciler struct {
	customerID uuid.UUID
	version    int64
	err        error
}

func (r *recordingReconciler) Reconcile(_ context.Context, customerID uuid.UUID, version int64) (bool, error) {
	r.customerID = customerID
	r.version = version
	return r.err == nil, r.err
}

type stubSubscriber struct {
	events []notify.Event
	err    error
	block  bool
}

func (s stubSubscriber) Subscribe(ctx context.Context, handler notify.Handler) error {
	for _, event := range s.events {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func TestRouterReconcilesCart(t *testing.T) {
	reconciler := &recordingReconciler{}
	router := newRouter(logger.Nop(), reconciler)
	customerID := uuid.New()

	err := router.Dispatch(context.Background(), notify.Event{
		Type:    enums.EventCartReconcileRequired,
		Payload: &payloads.CartReconcileRequiredEvent{CustomerID: customerID, OrderID: uuid.New(), CartVersion: 7},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if reconciler.customerID != customerID || reconciler.version != 7 {
		t.Fatalf("unexpected reconcile call %+v", reconciler)
	}
}

func TestRouterSurfacesReconcileFailure(t *testing.T) {
	router := newRouter(logger.Nop(), &recordingReconciler{err: errors.New("db down")})
	err := router.Dispatch(context.Background(), notify.Event{
		Type:    enums.EventCartReconcileRequired,
		Payload: &payloads.CartReconcileRequiredEvent{CustomerID: uuid.New(), CartVersion: 1},
	})
	if err == nil {
		t.Fatalf("expected error so the message is redelivered")
	}
}

func TestRouterRejectsMismatchedPayload(t *testing.T) {
	router := newRouter(logger.Nop(), &recordingReconciler{})
	err := router.Dispatch(context.Background(), notify.Event{
		Type:    enums.EventCartReconcileRequired,
		Payload: &payloads.CartChangedEvent{},
	})
	if err == nil {
		t.Fatalf("expected payload type error")
	}
}

func TestCustomerOf(t *testing.T) {
	id := uuid.New()
	if got := customerOf(&payloads.OrderPlacedEvent{CustomerID: id}); got != id {
		t.Fatalf("unexpected customer %s", got)
	}
	if got := customerOf("nope"); got != uuid.Nil {
		t.Fatalf("expected nil uuid, got %s", got)
	}
}

func newTestService(t *testing.T, sub notify.Subscriber, db okPinger) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.Nop(),
		DB:         db,
		Redis:      okPinger{},
		PubSub:     okPinger{},
		Subscriber: sub,
		Handler:    newRouter(logger.Nop(), &recordingReconciler{}).Dispatch,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceRunStopsOnReadinessFailure(t *testing.T) {
	svc := newTestService(t, stubSubscriber{block: true}, okPinger{err: errors.New("refused")})
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
}

func TestServiceRunReturnsSubscriberError(t *testing.T) {
	boom := errors.New("subscription gone")
	svc := newTestService(t, stubSubscriber{err: boom}, okPinger{})
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected subscriber error, got %v", err)
	}
}

func TestServiceRunHonorsCancel(t *testing.T) {
	svc := newTestService(t, stubSubscriber{
		block:  true,
		events: []notify.Event{{Type: enums.EventOrderPlaced, Payload: &payloads.OrderPlacedEvent{CustomerID: uuid.New()}}},
	}, okPinger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error")
	}
}
