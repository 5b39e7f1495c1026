package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

const defaultReconcileBatch = 200

type CartReconcileJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Carts      cart.CartRepository
	Outbox     outboxEmitter
	BatchSize  int
	EmitEvents bool
}

// NewCartReconcileJob deletes carts that an order placed after their last
// write has already consumed. These are left behind when a split checkout
// could not clear the cart.
func NewCartReconcileJob(params CartReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.EmitEvents && params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	reconciler, err := cart.NewReconciler(params.Carts, params.DB, params.Outbox, params.EmitEvents)
	if err != nil {
		return nil, err
	}
	return &cartReconcileJob{
		logg:       params.Logger,
		carts:      params.Carts,
		reconciler: reconciler,
		batch:      batch,
	}, nil
}

type cartReconcileJob struct {
	logg       *logger.Logger
	carts      cart.CartRepository
	reconciler *cart.Reconciler
	batch      int
}

func (j *cartReconcileJob) Name() string { return "cart_reconcile" }

func (j *cartReconcileJob) Run(ctx context.Context) error {
	stale, err := j.carts.ListSupersededByOrders(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list superseded carts: %w", err)
	}

	var (
		errs    error
		deleted int
		skipped int
	)
	for i := range stale {
		c := stale[i]
		removed, err := j.reconcile(ctx, &c)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cart %s: %w", c.CustomerID, err))
			continue
		}
		if removed {
			deleted++
		} else {
			skipped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"deleted":    deleted,
		"skipped":    skipped,
	})
	j.logg.Info(logCtx, "cart reconcile complete")
	return errs
}

// reconcile deletes the cart at the version that was listed. A cart edited
// since then is newer than the order and is kept.
func (j *cartReconcileJob) reconcile(ctx context.Context, c *models.Cart) (bool, error) {
	return j.reconciler.Reconcile(ctx, c.CustomerID, c.Version)
}
