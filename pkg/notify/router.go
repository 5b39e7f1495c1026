package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// Router dispatches events to the handler registered for their type.
// Events without a handler are dropped.
type Router struct {
	mtx      sync.RWMutex
	handlers map[enums.OutboxEventType]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[enums.OutboxEventType]Handler)}
}

// Handle registers handler for eventType, replacing any previous one.
func (r *Router) Handle(eventType enums.OutboxEventType, handler Handler) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.handlers[eventType] = handler
}

// Dispatch is a Handler.
func (r *Router) Dispatch(ctx context.Context, event Event) error {
	r.mtx.RLock()
	handler, ok := r.handlers[event.Type]
	r.mtx.RUnlock()
	if !ok || handler == nil {
		return nil
	}
	return handler(ctx, event)
}

// Fanout runs every subscriber with the same handler and returns when the
// first of them stops.
type Fanout []Subscriber

func (f Fanout) Subscribe(ctx context.Context, handler Handler) error {
	if len(f) == 0 {
		return errors.New("no subscribers configured")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(f))
	for _, sub := range f {
		go func(sub Subscriber) {
			errCh <- sub.Subscribe(ctx, handler)
		}(sub)
	}
	err := <-errCh
	cancel()
	for i := 1; i < len(f); i++ {
		<-errCh
	}
	return err
}
