package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/pagination"
)

// Service exposes a customer's order history.
type Service interface {
	ListOrders(ctx context.Context, customerID uuid.UUID, locale enums.Locale, params pagination.Params) (*OrderPage, error)
	GetOrder(ctx context.Context, customerID, orderID uuid.UUID, locale enums.Locale) (*OrderDTO, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListOrders(ctx context.Context, customerID uuid.UUID, locale enums.Locale, params pagination.Params) (*OrderPage, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByCustomer(ctx, customerID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{At: o.PlacedAt, ID: o.ID}
	})

	items := make([]OrderDTO, 0, len(page))
	for _, o := range page {
		items = append(items, ToDTO(o, locale))
	}
	return &OrderPage{Items: items, NextCursor: next}, nil
}

func (s *service) GetOrder(ctx context.Context, customerID, orderID uuid.UUID, locale enums.Locale) (*OrderDTO, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
	}
	order, err := s.repo.FindForCustomer(ctx, customerID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := ToDTO(*order, locale)
	return &dto, nil
}
