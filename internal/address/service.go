package address

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	List(ctx context.Context, customerID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, customerID uuid.UUID, input AddressInput) (*AddressDTO, error)
	Update(ctx context.Context, customerID, id uuid.UUID, input AddressInput) (*AddressDTO, error)
	Delete(ctx context.Context, customerID, id uuid.UUID) error
	SetDefault(ctx context.Context, customerID, id uuid.UUID) (*AddressDTO, error)
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

func NewService(repo *Repository, tx txRunner, publisher outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]AddressDTO, error) {
	if customerID == uuid.Nil {
		return nil, unauthenticated()
	}
	rows, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// Create stores a new address. The first address of a customer is always
// the default.
func (s *service) Create(ctx context.Context, customerID uuid.UUID, input AddressInput) (*AddressDTO, error) {
	if customerID == uuid.Nil {
		return nil, unauthenticated()
	}
	input, err := normalize(input)
	if err != nil {
		return nil, err
	}

	var created models.Address
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.Count(ctx, customerID)
		if err != nil {
			return err
		}
		created = models.Address{
			CustomerID: customerID,
			Name:       input.Name,
			House:      input.House,
			Street:     input.Street,
			Landmark:   input.Landmark,
		}
		if err := repo.Create(ctx, &created); err != nil {
			return err
		}
		if input.IsDefault || count == 0 {
			if err := repo.SetDefault(ctx, customerID, created.ID); err != nil {
				return err
			}
			created.IsDefault = true
		}
		return s.emit(ctx, tx, customerID, created.ID, "created")
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	dto := toDTO(created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, customerID, id uuid.UUID, input AddressInput) (*AddressDTO, error) {
	if customerID == uuid.Nil {
		return nil, unauthenticated()
	}
	input, err := normalize(input)
	if err != nil {
		return nil, err
	}

	var updated *models.Address
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.Find(ctx, customerID, id)
		if err != nil {
			return err
		}
		existing.Name = input.Name
		existing.House = input.House
		existing.Street = input.Street
		existing.Landmark = input.Landmark
		existing.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, existing); err != nil {
			return err
		}
		if input.IsDefault && !existing.IsDefault {
			if err := repo.SetDefault(ctx, customerID, id); err != nil {
				return err
			}
			existing.IsDefault = true
		}
		updated = existing
		return s.emit(ctx, tx, customerID, id, "updated")
	})
	if err != nil {
		return nil, mapErr(err, "update address")
	}
	dto := toDTO(*updated)
	return &dto, nil
}

// Delete removes the address. When the default is removed the newest
// remaining address takes its place.
func (s *service) Delete(ctx context.Context, customerID, id uuid.UUID) error {
	if customerID == uuid.Nil {
		return unauthenticated()
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.Find(ctx, customerID, id)
		if err != nil {
			return err
		}
		if _, err := repo.Delete(ctx, customerID, id); err != nil {
			return err
		}
		if existing.IsDefault {
			next, err := repo.Newest(ctx, customerID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return err
			default:
				if err := repo.SetDefault(ctx, customerID, next.ID); err != nil {
					return err
				}
			}
		}
		return s.emit(ctx, tx, customerID, id, "deleted")
	})
	if err != nil {
		return mapErr(err, "delete address")
	}
	return nil
}

func (s *service) SetDefault(ctx context.Context, customerID, id uuid.UUID) (*AddressDTO, error) {
	if customerID == uuid.Nil {
		return nil, unauthenticated()
	}
	var result *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.Find(ctx, customerID, id)
		if err != nil {
			return err
		}
		if err := repo.SetDefault(ctx, customerID, id); err != nil {
			return err
		}
		existing.IsDefault = true
		result = existing
		return s.emit(ctx, tx, customerID, id, "default_changed")
	})
	if err != nil {
		return nil, mapErr(err, "set default address")
	}
	dto := toDTO(*result)
	return &dto, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, customerID, addressID uuid.UUID, action string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAddressChanged,
		AggregateType: enums.AggregateAddress,
		AggregateID:   addressID,
		Actor:         &outbox.ActorRef{CustomerID: customerID, Role: string(enums.RoleCustomer)},
		Data: payloads.AddressChangedEvent{
			CustomerID: customerID,
			AddressID:  addressID,
			Action:     action,
		},
	})
}

func normalize(input AddressInput) (AddressInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.House = strings.TrimSpace(input.House)
	input.Street = strings.TrimSpace(input.Street)
	if input.Landmark != nil {
		landmark := strings.TrimSpace(*input.Landmark)
		if landmark == "" {
			input.Landmark = nil
		} else {
			input.Landmark = &landmark
		}
	}
	if input.Name == "" || input.House == "" || input.Street == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "name, house and street are required")
	}
	return input, nil
}

func mapErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func unauthenticated() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
}
