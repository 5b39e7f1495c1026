package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/registry"
	"github.com/angelmondragon/kirana-backend/pkg/pubsub"
)

type batchStats struct {
	fetched      int
	published    int
	superseded   int
	deferred     int
	retrying     int
	deadLettered int
}

func (b *batchStats) add(o batchStats) {
	b.fetched += o.fetched
	b.published += o.published
	b.superseded += o.superseded
	b.deferred += o.deferred
	b.retrying += o.retrying
	b.deadLettered += o.deadLettered
}

// settled counts rows that left the queue.
func (b batchStats) settled() int {
	return b.published + b.superseded + b.deadLettered
}

// processBatch publishes one locked batch. Once a row for an aggregate fails
// with a retryable error, later rows for that aggregate stay queued untouched
// so subscribers never see a customer's cart out of order.
func (s *Service) processBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = batchStats{}
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, fetchCeiling(s.maxAttempts))
		if err != nil {
			return err
		}
		stats.fetched = len(events)

		blocked := make(map[string]bool)
		for _, p := range planBatch(events, s.maxAttempts) {
			if blocked[p.key] {
				stats.deferred++
				continue
			}
			if err := s.deliver(ctx, tx, p, blocked, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (s *Service) deliver(ctx context.Context, tx *gorm.DB, p plannedEvent, blocked map[string]bool, stats *batchStats) error {
	event := p.event
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"delivery_class": p.policy.class,
		"attempt_count":  event.AttemptCount,
	})

	if p.superseded {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark superseded %s: %w", event.ID, err)
		}
		stats.superseded++
		s.logg.Debug(logCtx, "outbox snapshot superseded by a newer one")
		return nil
	}

	if p.expired(s.now()) {
		stats.deadLettered++
		return s.deadLetter(logCtx, tx, p, enums.OutboxDLQReasonExpired,
			fmt.Errorf("%s older than %s", event.EventType, p.policy.expireAfter))
	}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		stats.deadLettered++
		return s.deadLetter(logCtx, tx, p, enums.OutboxDLQReasonNonRetryable, err)
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"topic":    resolved.Descriptor.Topic,
		"event_id": resolved.Envelope.EventID,
	})

	err = s.publish(ctx, p, resolved)
	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		stats.published++
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) {
		stats.deadLettered++
		return s.deadLetter(logCtx, tx, p, enums.OutboxDLQReasonNonRetryable, err)
	}

	attempt := event.AttemptCount + 1
	if attempt >= p.policy.attempts {
		stats.deadLettered++
		return s.deadLetter(logCtx, tx, p, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("%d publish attempts exhausted: %w", attempt, err))
	}

	blocked[p.key] = true
	stats.retrying++
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"attempt_count": attempt,
		"error":         err.Error(),
	})
	s.logg.Warn(logCtx, "outbox publish failed, aggregate paused until next batch")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, p plannedEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data:        p.event.Payload,
		OrderingKey: p.key,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(p.event.EventType),
			"aggregate_type": string(p.event.AggregateType),
			"aggregate_id":   p.event.AggregateID.String(),
			"delivery_class": string(p.policy.class),
			"created_at":     p.event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		pub.Resume(p.key)
		if !pubsub.IsRetryable(err) {
			return registry.NewNonRetryableError(err)
		}
		return err
	}
	return nil
}

// deadLetter parks the row in outbox_dlq and pins its attempt count at the
// fetch ceiling so no publisher picks it up again.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, p plannedEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	})
	if p.policy.class == classCritical {
		s.logg.Error(logCtx, "critical outbox event dead-lettered", cause)
	} else {
		s.logg.Warn(logCtx, "outbox event dead-lettered")
	}

	if err := s.dlq.DeadLetterTx(tx, p.event, reason, cause, s.now()); err != nil {
		return fmt.Errorf("insert dlq %s: %w", p.event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, p.event.ID, cause, fetchCeiling(s.maxAttempts)); err != nil {
		return fmt.Errorf("mark terminal %s: %w", p.event.ID, err)
	}
	return nil
}
