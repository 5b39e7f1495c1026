package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
)

const (
	defaultReminderAfter = 24 * time.Hour
	reminderBatch        = 500
)

type AbandonedCartJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Carts  cart.CartRepository
	Outbox outboxEmitter
	After  time.Duration
}

// NewAbandonedCartJob flags carts idle for longer than After and queues a
// cart.reminder_due event for each. A cart is reminded once per edit.
func NewAbandonedCartJob(params AbandonedCartJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	after := params.After
	if after <= 0 {
		after = defaultReminderAfter
	}
	return &abandonedCartJob{
		logg:   params.Logger,
		db:     params.DB,
		carts:  params.Carts,
		outbox: params.Outbox,
		after:  after,
		now:    time.Now,
	}, nil
}

type abandonedCartJob struct {
	logg   *logger.Logger
	db     txRunner
	carts  cart.CartRepository
	outbox outboxEmitter
	after  time.Duration
	now    func() time.Time
}

func (j *abandonedCartJob) Name() string { return "abandoned_cart_reminder" }

func (j *abandonedCartJob) Run(ctx context.Context) error {
	idleBefore := j.now().UTC().Add(-j.after)
	idle, err := j.carts.ListIdleUnreminded(ctx, idleBefore, reminderBatch)
	if err != nil {
		return fmt.Errorf("list idle carts: %w", err)
	}

	var errs error
	reminded := 0
	for i := range idle {
		c := idle[i]
		ok, err := j.remind(ctx, &c)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cart %s: %w", c.CustomerID, err))
			continue
		}
		if ok {
			reminded++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"idle_before": idleBefore,
		"candidates":  len(idle),
		"reminded":    reminded,
	})
	j.logg.Info(logCtx, "abandoned cart reminders queued")
	return errs
}

func (j *abandonedCartJob) remind(ctx context.Context, c *models.Cart) (bool, error) {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	if count == 0 {
		return false, nil
	}

	marked := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := j.carts.WithTx(tx).MarkReminded(ctx, c.CustomerID, c.Version)
		if err != nil || !ok {
			return err
		}
		marked = true
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartReminderDue,
			AggregateType: enums.AggregateCart,
			AggregateID:   c.CustomerID,
			Data: payloads.CartReminderDueEvent{
				CustomerID: c.CustomerID,
				ItemCount:  count,
				TotalPrice: c.TotalPrice,
				IdleSince:  c.UpdatedAt,
			},
		})
	})
	return marked, err
}
