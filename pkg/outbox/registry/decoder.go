package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry stores versioned payload decoders for consumers.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

// NewDecoderRegistry builds an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// NewDefaultDecoderRegistry registers v1 decoders for every published event.
func NewDefaultDecoderRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventCartUpdated, 1, decodeInto(func() any { return &payloads.CartChangedEvent{} }))
	r.Register(enums.EventCartDeleted, 1, decodeInto(func() any { return &payloads.CartChangedEvent{} }))
	r.Register(enums.EventCartReconcileRequired, 1, decodeInto(func() any { return &payloads.CartReconcileRequiredEvent{} }))
	r.Register(enums.EventCartReminderDue, 1, decodeInto(func() any { return &payloads.CartReminderDueEvent{} }))
	r.Register(enums.EventOrderPlaced, 1, decodeInto(func() any { return &payloads.OrderPlacedEvent{} }))
	r.Register(enums.EventAddressChanged, 1, decodeInto(func() any { return &payloads.AddressChangedEvent{} }))
	r.Register(enums.EventLocaleChanged, 1, decodeInto(func() any { return &payloads.LocaleChangedEvent{} }))
	return r
}

func decodeInto(factory func() any) decoderFunc {
	return func(payload json.RawMessage) (interface{}, error) {
		target := factory()
		if err := json.Unmarshal(payload, target); err != nil {
			return nil, err
		}
		return target, nil
	}
}

// Register stores a decoder for the given event type and version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}
