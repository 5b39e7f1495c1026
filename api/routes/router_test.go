package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/kirana-backend/internal/auth"
	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/internal/catalog"
	"github.com/angelmondragon/kirana-backend/internal/checkout"
	"github.com/angelmondragon/kirana-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/kirana-backend/pkg/auth"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/metrics"
	"github.com/angelmondragon/kirana-backend/pkg/pagination"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryRedis struct {
	stubPinger
	mu   sync.Mutex
	data map[string]string
	hits map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, hits: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[scope]++
	return m.hits[scope] <= limit, m.hits[scope], nil
}

type stubRevocations struct{ revoked map[string]bool }

func (s stubRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return s.revoked[id], nil
}

type stubCart struct {
	cart.Service
	added []string
}

func (s *stubCart) GetCart(_ context.Context, customerID uuid.UUID) (*cart.Cart, error) {
	return &cart.Cart{CustomerID: customerID, Empty: true, Status: enums.CartStatusPending}, nil
}

func (s *stubCart) AddItem(_ context.Context, customerID uuid.UUID, product models.Product) (*cart.Cart, error) {
	s.added = append(s.added, product.SKU)
	return &cart.Cart{
		CustomerID: customerID,
		Items: []models.CartItem{{
			SKU:      product.SKU,
			Name:     types.NewLocalizedText("Rice", "चावल"),
			Price:    product.Price,
			Quantity: 1,
		}},
		TotalPrice: product.Price,
		Version:    1,
		Status:     enums.CartStatusPending,
	}, nil
}

type stubCatalog struct {
	catalog.Service
}

func (stubCatalog) ResolveProduct(_ context.Context, _ *uuid.UUID, sku string) (*models.Product, error) {
	return &models.Product{SKU: sku, Price: 5500}, nil
}

func (stubCatalog) ListProducts(context.Context, enums.Locale, catalog.ProductFilter) (*catalog.ProductPage, error) {
	return &catalog.ProductPage{Items: []catalog.ProductDTO{{SKU: "RICE-1", Name: "Rice"}}}, nil
}

type stubCheckout struct {
	checkout.Service
	keys []string
}

func (s *stubCheckout) Checkout(_ context.Context, customerID uuid.UUID, input checkout.Input) (*checkout.Result, error) {
	s.keys = append(s.keys, input.IdempotencyKey)
	return &checkout.Result{
		Order: &models.Order{
			ID:           uuid.New(),
			CustomerID:   customerID,
			CustomerName: "Asha",
			Status:       enums.OrderStatusProcessing,
			TotalPrice:   9500,
		},
		Replayed:    len(s.keys) > 1,
		CartCleared: len(s.keys) == 1,
	}, nil
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) ListOrders(context.Context, uuid.UUID, enums.Locale, pagination.Params) (*orders.OrderPage, error) {
	return &orders.OrderPage{}, nil
}

type stubAuth struct {
	auth.Service
}

func (stubAuth) RequestOTP(_ context.Context, req auth.OTPRequest) (*auth.OTPRequestResponse, error) {
	return &auth.OTPRequestResponse{Phone: req.Phone, ExpiresIn: 300}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "kirana", ExpirationMinutes: 30, AdminSecret: "admin"},
		RateLimit: config.RateLimitConfig{
			OTPWindow:     time.Minute,
			OTPIPLimit:    100,
			OTPPhoneLimit: 2,
		},
	}
}

type harness struct {
	handler  http.Handler
	cfg      *config.Config
	cart     *stubCart
	checkout *stubCheckout
}

func newHarness(t *testing.T, revoked map[string]bool) harness {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewCartMetrics(reg).IncConflict("add_item")

	h := harness{cfg: cfg, cart: &stubCart{}, checkout: &stubCheckout{}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	h.handler = NewRouter(cfg, logg, stubPinger{}, newMemoryRedis(), stubRevocations{revoked: revoked}, reg, Services{
		Auth:     stubAuth{},
		Cart:     h.cart,
		Checkout: h.checkout,
		Orders:   stubOrders{},
		Catalog:  stubCatalog{},
	})
	return h
}

func (h harness) customerToken(t *testing.T, jti string) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		CustomerID: uuid.New(),
		Role:       enums.RoleCustomer,
		Locale:     enums.LocaleEnglish,
		JTI:        jti,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return token
}

func (h harness) do(method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(http.MethodGet, "/health/live", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/health/ready", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", rec.Code)
	}
	rec := h.do(http.MethodGet, "/metrics", "", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "kirana_cart_version_conflicts_total") {
		t.Fatalf("metrics: unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestCustomerRoutesRequireToken(t *testing.T) {
	h := newHarness(t, map[string]bool{"revoked-jti": true})

	if rec := h.do(http.MethodGet, "/api/v1/cart", "", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/v1/cart", h.customerToken(t, "revoked-jti"), "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401 got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/v1/cart", h.customerToken(t, "ok-jti"), "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRoutesRejectCustomerToken(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/api/admin/v1/products/import", h.customerToken(t, "c"), `{"products":[]}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAddItemLocalizesCart(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/api/v1/cart/items?locale=hi", h.customerToken(t, "a"), `{"sku":"RICE-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data cart.CartDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Items) != 1 || body.Data.Items[0].Name != "चावल" {
		t.Fatalf("expected hindi item name, got %+v", body.Data.Items)
	}
	if len(h.cart.added) != 1 || h.cart.added[0] != "RICE-1" {
		t.Fatalf("unexpected adds %v", h.cart.added)
	}
}

func TestCheckoutForwardsIdempotencyKey(t *testing.T) {
	h := newHarness(t, nil)
	token := h.customerToken(t, "k")
	headers := map[string]string{"Idempotency-Key": "order-1"}

	first := h.do(http.MethodPost, "/api/v1/checkout", token, `{"customer_name":"Asha"}`, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	replay := h.do(http.MethodPost, "/api/v1/checkout", token, "", headers)
	if replay.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay got %d", replay.Code)
	}
	if len(h.checkout.keys) != 2 || h.checkout.keys[0] != "order-1" || h.checkout.keys[1] != "order-1" {
		t.Fatalf("unexpected keys %v", h.checkout.keys)
	}
}

func TestPublicCatalogAndOTPThrottle(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(http.MethodGet, "/api/v1/catalog/products?category=staples", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("catalog: expected 200 got %d", rec.Code)
	}

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = h.do(http.MethodPost, "/api/v1/auth/otp/request", "", `{"phone":"+919876543210"}`, nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected third request throttled, got %d", last.Code)
	}
}

func TestReadinessReportsDependencyFailure(t *testing.T) {
	cfg := testConfig()
	handler := NewRouter(cfg, logger.Nop(), stubPinger{err: errors.New("db down")}, nil, nil, nil, Services{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
