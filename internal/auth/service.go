package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/internal/customers"
	pkgAuth "github.com/angelmondragon/kirana-backend/pkg/auth"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
	redisclient "github.com/angelmondragon/kirana-backend/pkg/redis"
	"github.com/angelmondragon/kirana-backend/pkg/security"
)

const (
	invalidCodeMessage = "invalid or expired code"
	otpDigits          = 6
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	RequestOTP(ctx context.Context, req OTPRequest) (*OTPRequestResponse, error)
	VerifyOTP(ctx context.Context, req OTPVerifyRequest) (*LoginResponse, error)
	Logout(ctx context.Context, session Session) error
	Me(ctx context.Context, customerID uuid.UUID) (*customers.CustomerDTO, error)
	UpdateLocale(ctx context.Context, customerID uuid.UUID, req UpdateLocaleRequest) (*customers.CustomerDTO, error)
	UpdateProfile(ctx context.Context, customerID uuid.UUID, req UpdateProfileRequest) (*customers.CustomerDTO, error)
}

type customerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindOrCreateByPhone(ctx context.Context, phone string, locale enums.Locale) (*models.Customer, bool, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateLocale(ctx context.Context, id uuid.UUID, locale enums.Locale) (bool, error)
	UpdateName(ctx context.Context, id uuid.UUID, name *string) (bool, error)
}

type otpStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	OTPKey(phone string) string
	OTPAttemptsKey(phone string) string
}

type revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CodeSender delivers a login code out of band (SMS gateway).
type CodeSender interface {
	Send(ctx context.Context, phone, code string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Customers      customerRepository
	Store          otpStore
	Revocations    revoker
	Tx             txRunner
	Outbox         outbox.Emitter
	Sender         CodeSender
	JWTConfig      config.JWTConfig
	AuthConfig     config.AuthConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	customers customerRepository
	store     otpStore
	revoked   revoker
	tx        txRunner
	outbox    outbox.Emitter
	sender    CodeSender
	jwtCfg    config.JWTConfig
	authCfg   config.AuthConfig
	hashCfg   config.PasswordConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs the OTP login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Customers == nil {
		return nil, fmt.Errorf("customer repository is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("otp store is required")
	}
	if params.Revocations == nil {
		return nil, fmt.Errorf("token revocations are required")
	}
	if params.Tx == nil || params.Outbox == nil {
		return nil, fmt.Errorf("tx runner and outbox are required")
	}
	if params.Sender == nil && strings.TrimSpace(params.AuthConfig.OTPStubCode) == "" {
		return nil, fmt.Errorf("a code sender is required when no stub code is configured")
	}
	s := &service{
		customers: params.Customers,
		store:     params.Store,
		revoked:   params.Revocations,
		tx:        params.Tx,
		outbox:    params.Outbox,
		sender:    params.Sender,
		jwtCfg:    params.JWTConfig,
		authCfg:   params.AuthConfig,
		hashCfg:   params.PasswordConfig,
		logg:      params.Logger,
		now:       params.Now,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RequestOTP issues a code for phone. With a stub code configured no message
// is sent and the stub is the only accepted code.
func (s *service) RequestOTP(ctx context.Context, req OTPRequest) (*OTPRequestResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	if limit := s.authCfg.OTPRequestLimit; limit > 0 {
		ok, _, err := s.store.FixedWindowAllow(ctx, "otp:"+phone, int64(limit), s.authCfg.OTPRequestWindow)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit otp request")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many code requests, try again later")
		}
	}

	code := strings.TrimSpace(s.authCfg.OTPStubCode)
	if code == "" {
		if code, err = security.GenerateOTP(otpDigits); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
		}
	}
	hash, err := security.HashSecret(code, s.hashCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash otp")
	}
	if err := s.store.Set(ctx, s.store.OTPKey(phone), hash, s.authCfg.OTPTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}
	if err := s.store.Del(ctx, s.store.OTPAttemptsKey(phone)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset otp attempts")
	}
	if s.sender != nil && s.authCfg.OTPStubCode == "" {
		if err := s.sender.Send(ctx, phone, code); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send otp")
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "phone", phone), "otp issued")

	return &OTPRequestResponse{Phone: phone, ExpiresIn: int(s.authCfg.OTPTTL.Seconds())}, nil
}

func (s *service) VerifyOTP(ctx context.Context, req OTPVerifyRequest) (*LoginResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	attempts, err := s.store.IncrWithTTL(ctx, s.store.OTPAttemptsKey(phone), s.authCfg.OTPTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count otp attempts")
	}
	if maxAttempts := s.authCfg.OTPMaxAttempts; maxAttempts > 0 && attempts > int64(maxAttempts) {
		_ = s.store.Del(ctx, s.store.OTPKey(phone))
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, request a new code")
	}

	hash, err := s.store.Get(ctx, s.store.OTPKey(phone))
	if err != nil {
		if errors.Is(err, redisclient.ErrNil) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}
	ok, err := security.VerifySecret(strings.TrimSpace(req.Code), hash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify otp")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}
	if err := s.store.Del(ctx, s.store.OTPKey(phone), s.store.OTPAttemptsKey(phone)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to clear used otp")
	}

	customer, created, err := s.customers.FindOrCreateByPhone(ctx, phone, enums.LocaleOrDefault(s.authCfg.DefaultLocale))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	now := s.now().UTC()
	if err := s.customers.UpdateLastLogin(ctx, customer.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	customer.LastLoginAt = &now

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		CustomerID: customer.ID,
		Role:       enums.RoleCustomer,
		Locale:     customer.PreferredLocale,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwtCfg.Expiration()),
		IsNew:       created,
		Customer:    customers.FromModel(customer),
	}, nil
}

func (s *service) Logout(ctx context.Context, session Session) error {
	if strings.TrimSpace(session.TokenID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing token id")
	}
	if err := s.revoked.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token")
	}
	return nil
}

func (s *service) Me(ctx context.Context, customerID uuid.UUID) (*customers.CustomerDTO, error) {
	customer, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return customers.FromModel(customer), nil
}

// UpdateLocale stores the preference and emits customer.locale_changed in
// the same transaction.
func (s *service) UpdateLocale(ctx context.Context, customerID uuid.UUID, req UpdateLocaleRequest) (*customers.CustomerDTO, error) {
	locale, err := enums.ParseLocale(req.Locale)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported locale")
	}
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.customersWithTx(tx)
		ok, err := repo.UpdateLocale(ctx, customerID, locale)
		if err != nil {
			return err
		}
		if !ok {
			return gorm.ErrRecordNotFound
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLocaleChanged,
			AggregateType: enums.AggregateCustomer,
			AggregateID:   customerID,
			Actor:         &outbox.ActorRef{CustomerID: customerID, Role: string(enums.RoleCustomer)},
			Data:          payloads.LocaleChangedEvent{CustomerID: customerID, Locale: locale},
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update locale")
	}
	return s.Me(ctx, customerID)
}

func (s *service) UpdateProfile(ctx context.Context, customerID uuid.UUID, req UpdateProfileRequest) (*customers.CustomerDTO, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
	}
	var name *string
	if req.Name != nil {
		if trimmed := strings.TrimSpace(*req.Name); trimmed != "" {
			name = &trimmed
		}
	}
	ok, err := s.customers.UpdateName(ctx, customerID, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return s.Me(ctx, customerID)
}

func (s *service) load(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
	}
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

// customersWithTx rebinds the repository when it supports transactions.
func (s *service) customersWithTx(tx *gorm.DB) customerRepository {
	if binder, ok := s.customers.(interface {
		WithTx(*gorm.DB) *customers.Repository
	}); ok {
		return binder.WithTx(tx)
	}
	return s.customers
}
