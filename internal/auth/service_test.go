package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/internal/customers"
	pkgAuth "github.com/angelmondragon/kirana-backend/pkg/auth"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	redisclient "github.com/angelmondragon/kirana-backend/pkg/redis"
)

type memoryStore struct {
	values  map[string]string
	counts  map[string]int64
	windows map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, counts: map[string]int64{}, windows: map[string]int64{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redisclient.ErrNil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
		delete(m.counts, key)
	}
	return nil
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.windows[scope]++
	return m.windows[scope] <= limit, m.windows[scope], nil
}

func (m *memoryStore) OTPKey(phone string) string         { return "otp:" + phone }
func (m *memoryStore) OTPAttemptsKey(phone string) string { return "otp:" + phone + ":attempts" }

type recordingRevoker struct {
	revoked map[string]time.Time
}

func (r *recordingRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	r.revoked[tokenID] = expiresAt
	return nil
}

type capturingSender struct {
	codes map[string]string
}

func (c *capturingSender) Send(_ context.Context, phone, code string) error {
	c.codes[phone] = code
	return nil
}

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "kirana-test", ExpirationMinutes: 60}

type authFixture struct {
	conn    *gorm.DB
	store   *memoryStore
	revoker *recordingRevoker
	svc     Service
}

func newAuthFixture(t *testing.T, authCfg config.AuthConfig, sender CodeSender) *authFixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &authFixture{conn: conn, store: newMemoryStore(), revoker: &recordingRevoker{revoked: map[string]time.Time{}}}
	svc, err := NewService(ServiceParams{
		Customers:      customers.NewRepository(conn),
		Store:          f.store,
		Revocations:    f.revoker,
		Tx:             db.FromGorm(conn),
		Outbox:         outbox.NewService(outbox.NewRepository(conn), nil),
		Sender:         sender,
		JWTConfig:      testJWT,
		AuthConfig:     authCfg,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func stubAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		OTPStubCode:      "1234",
		OTPTTL:           5 * time.Minute,
		OTPMaxAttempts:   3,
		OTPRequestWindow: 10 * time.Minute,
		OTPRequestLimit:  2,
		DefaultLocale:    "hi",
	}
}

func TestOTPLoginWithStubCode(t *testing.T) {
	f := newAuthFixture(t, stubAuthConfig(), nil)
	ctx := context.Background()

	resp, err := f.svc.RequestOTP(ctx, OTPRequest{Phone: "98765 43210"})
	require.NoError(t, err)
	require.Equal(t, "+919876543210", resp.Phone)
	require.Equal(t, 300, resp.ExpiresIn)
	require.NotEqual(t, "1234", f.store.values["otp:+919876543210"], "code must be stored hashed")

	login, err := f.svc.VerifyOTP(ctx, OTPVerifyRequest{Phone: "+919876543210", Code: "1234"})
	require.NoError(t, err)
	require.True(t, login.IsNew)
	require.Equal(t, enums.LocaleHindi, login.Customer.PreferredLocale)

	claims, err := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, login.Customer.ID, claims.CustomerID)

	_, err = f.svc.VerifyOTP(ctx, OTPVerifyRequest{Phone: "+919876543210", Code: "1234"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "used code must not verify twice, got %v", err)
}

func TestOTPRequestRateLimited(t *testing.T) {
	f := newAuthFixture(t, stubAuthConfig(), nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.svc.RequestOTP(ctx, OTPRequest{Phone: "9876543210"})
		require.NoError(t, err)
	}
	_, err := f.svc.RequestOTP(ctx, OTPRequest{Phone: "9876543210"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit), "got %v", err)
}

func TestOTPVerifyAttemptsExhausted(t *testing.T) {
	f := newAuthFixture(t, stubAuthConfig(), nil)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, OTPRequest{Phone: "9876543210"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.svc.VerifyOTP(ctx, OTPVerifyRequest{Phone: "9876543210", Code: "0000"})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
	}
	_, err = f.svc.VerifyOTP(ctx, OTPVerifyRequest{Phone: "9876543210", Code: "1234"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit), "got %v", err)
}

func TestOTPSentThroughSender(t *testing.T) {
	cfg := stubAuthConfig()
	cfg.OTPStubCode = ""
	sender := &capturingSender{codes: map[string]string{}}
	f := newAuthFixture(t, cfg, sender)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, OTPRequest{Phone: "7000000000"})
	require.NoError(t, err)
	code := sender.codes["+917000000000"]
	require.Len(t, code, otpDigits)

	login, err := f.svc.VerifyOTP(ctx, OTPVerifyRequest{Phone: "7000000000", Code: code})
	require.NoError(t, err)
	require.NotEmpty(t, login.AccessToken)
}

func TestUpdateLocaleEmitsEvent(t *testing.T) {
	f := newAuthFixture(t, stubAuthConfig(), nil)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, OTPRequest{Phone: "9876543210"})
	require.NoError(t, err)
	login, err := f.svc.VerifyOTP(ctx, OTPVerifyRequest{Phone: "9876543210", Code: "1234"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateLocale(ctx, login.Customer.ID, UpdateLocaleRequest{Locale: "EN"})
	require.NoError(t, err)
	require.Equal(t, enums.LocaleEnglish, updated.PreferredLocale)

	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventLocaleChanged).Count(&n).Error)
	require.Equal(t, int64(1), n)

	_, err = f.svc.UpdateLocale(ctx, login.Customer.ID, UpdateLocaleRequest{Locale: "fr"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.UpdateLocale(ctx, uuid.New(), UpdateLocaleRequest{Locale: "hi"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestUpdateProfileAndLogout(t *testing.T) {
	f := newAuthFixture(t, stubAuthConfig(), nil)
	ctx := context.Background()
	_, err := f.svc.RequestOTP(ctx, OTPRequest{Phone: "9876543210"})
	require.NoError(t, err)
	login, err := f.svc.VerifyOTP(ctx, OTPVerifyRequest{Phone: "9876543210", Code: "1234"})
	require.NoError(t, err)

	name := "  Sunita "
	profile, err := f.svc.UpdateProfile(ctx, login.Customer.ID, UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Sunita", *profile.Name)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, f.svc.Logout(ctx, Session{TokenID: "jti-1", ExpiresAt: exp}))
	require.Contains(t, f.revoker.revoked, "jti-1")
	require.True(t, pkgerrors.IsCode(f.svc.Logout(ctx, Session{}), pkgerrors.CodeUnauthorized))
}
