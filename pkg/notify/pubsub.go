package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/idempotency"
)

// receiver is satisfied by *pubsub.Subscriber.
type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type processedTracker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Outcome, error)
	Complete(ctx context.Context, consumer string, eventType enums.OutboxEventType, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type PubSubParams struct {
	// Consumer scopes the processed markers; two consumers of one
	// subscription must use different names.
	Consumer     string
	Subscription receiver
	Decoders     decoder
	Idempotency  processedTracker
	Logger       *logger.Logger
}

// PubSubSubscriber consumes outbox envelopes from one Pub/Sub subscription.
type PubSubSubscriber struct {
	consumer    string
	source      receiver
	decoders    decoder
	idempotency processedTracker
	logg        *logger.Logger
}

func NewPubSubSubscriber(params PubSubParams) (*PubSubSubscriber, error) {
	if strings.TrimSpace(params.Consumer) == "" {
		return nil, fmt.Errorf("consumer name required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if params.Decoders == nil {
		return nil, fmt.Errorf("decoder registry required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &PubSubSubscriber{
		consumer:    params.Consumer,
		source:      params.Subscription,
		decoders:    params.Decoders,
		idempotency: params.Idempotency,
		logg:        logg,
	}, nil
}

func (s *PubSubSubscriber) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler required")
	}
	return s.source.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.process(ctx, msg, handler).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

var (
	ack  = processResult{}
	nack = processResult{nack: true}
)

// process never nacks a message that can not succeed on redelivery.
func (s *PubSubSubscriber) process(ctx context.Context, msg *pubsub.Message, handler Handler) processResult {
	fields := map[string]any{
		"consumer":   s.consumer,
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	}
	logCtx := s.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
	if err != nil {
		s.logg.Warn(logCtx, "skipping message with unknown event type")
		return ack
	}

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		s.logg.Error(logCtx, "failed to decode envelope", err)
		return ack
	}
	logCtx = s.logg.WithField(logCtx, "event_id", eventID.String())

	payload, err := s.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		s.logg.Error(logCtx, "failed to decode payload", err)
		return ack
	}

	outcome, err := s.idempotency.Claim(ctx, s.consumer, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency claim failed", err)
		return nack
	}
	switch outcome {
	case idempotency.Duplicate:
		s.logg.Debug(logCtx, "event already processed")
		return ack
	case idempotency.InFlight:
		s.logg.Debug(logCtx, "event claimed by another delivery")
		return nack
	}

	event := Event{
		ID:            eventID,
		Type:          eventType,
		AggregateType: enums.OutboxAggregateType(msg.Attributes["aggregate_type"]),
		AggregateID:   msg.Attributes["aggregate_id"],
		Version:       envelope.Version,
		OccurredAt:    envelope.OccurredAt,
		Actor:         envelope.Actor,
		Payload:       payload,
	}
	if err := handler(logCtx, event); err != nil {
		if typed := pkgerrors.As(err); typed != nil && !pkgerrors.IsRetryable(typed) {
			// a missing order or an already reconciled cart stays that way
			s.logg.Error(logCtx, "event handler rejected event", err)
			if doneErr := s.idempotency.Complete(ctx, s.consumer, eventType, eventID); doneErr != nil {
				s.logg.Error(logCtx, "failed to mark event done", doneErr)
			}
			return ack
		}
		s.logg.Error(logCtx, "event handler failed", err)
		if releaseErr := s.idempotency.Release(ctx, s.consumer, eventID); releaseErr != nil {
			s.logg.Error(logCtx, "failed to release processed marker", releaseErr)
		}
		return nack
	}
	if err := s.idempotency.Complete(ctx, s.consumer, eventType, eventID); err != nil {
		// the lease runs out and a redelivery would handle the event again
		s.logg.Error(logCtx, "failed to mark event done", err)
	}
	return ack
}
