package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/auth"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

type stubRevocations struct {
	revoked bool
	err     error
}

func (s stubRevocations) IsRevoked(context.Context, string) (bool, error) {
	return s.revoked, s.err
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "kirana", ExpirationMinutes: 60, AdminSecret: "admin-secret"}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, payload auth.AccessTokenPayload) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	handler := Auth(testJWT(), stubRevocations{}, nil)(okHandler())

	if resp := serve(handler, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401 got %d", resp.Code)
	}
	if resp := serve(handler, "invalid"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsCustomerContext(t *testing.T) {
	cfg := testJWT()
	customerID := uuid.New()
	token := mintTestToken(t, cfg, auth.AccessTokenPayload{
		CustomerID: customerID,
		Role:       enums.RoleCustomer,
		Locale:     enums.LocaleHindi,
		JTI:        "jti-1",
	})

	var (
		gotID     uuid.UUID
		gotRole   string
		gotJTI    string
		gotExp    time.Time
		gotLocale enums.Locale
	)
	handler := Auth(cfg, stubRevocations{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = CustomerIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotJTI, gotExp = TokenFromContext(r.Context())
		gotLocale = LocaleFromContext(r.Context(), enums.LocaleEnglish)
		w.WriteHeader(http.StatusOK)
	}))

	if resp := serve(handler, token); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotID != customerID {
		t.Fatalf("expected customer %s got %s", customerID, gotID)
	}
	if gotRole != string(enums.RoleCustomer) || gotJTI != "jti-1" || gotExp.IsZero() {
		t.Fatalf("unexpected claims role=%s jti=%s exp=%v", gotRole, gotJTI, gotExp)
	}
	if gotLocale != enums.LocaleHindi {
		t.Fatalf("expected token locale hi got %s", gotLocale)
	}
}

func TestAuthRejectsRevokedToken(t *testing.T) {
	cfg := testJWT()
	token := mintTestToken(t, cfg, auth.AccessTokenPayload{CustomerID: uuid.New(), Role: enums.RoleCustomer})

	if resp := serve(Auth(cfg, stubRevocations{revoked: true}, nil)(okHandler()), token); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if resp := serve(Auth(cfg, stubRevocations{err: errors.New("redis down")}, nil)(okHandler()), token); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAdminAuthRejectsCustomerToken(t *testing.T) {
	cfg := testJWT()
	customerToken := mintTestToken(t, cfg, auth.AccessTokenPayload{CustomerID: uuid.New(), Role: enums.RoleCustomer})
	adminToken := mintTestToken(t, cfg, auth.AccessTokenPayload{Role: enums.RoleAdmin})

	handler := AdminAuth(cfg, nil, nil)(RequireRole(nil, enums.RoleAdmin)(okHandler()))
	if resp := serve(handler, customerToken); resp.Code != http.StatusUnauthorized {
		t.Fatalf("customer token: expected 401 got %d", resp.Code)
	}
	if resp := serve(handler, adminToken); resp.Code != http.StatusOK {
		t.Fatalf("admin token: expected 200 got %d", resp.Code)
	}
}

func TestLocaleQueryOverridesToken(t *testing.T) {
	cfg := testJWT()
	token := mintTestToken(t, cfg, auth.AccessTokenPayload{CustomerID: uuid.New(), Role: enums.RoleCustomer, Locale: enums.LocaleHindi})

	var got enums.Locale
	handler := Locale()(Auth(cfg, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context(), enums.DefaultLocale)
	})))
	req := httptest.NewRequest(http.MethodGet, "/?locale=EN", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != enums.LocaleEnglish {
		t.Fatalf("expected en got %s", got)
	}
}

func TestLocaleFromAcceptLanguage(t *testing.T) {
	var got enums.Locale
	handler := Locale()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context(), enums.DefaultLocale)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "hi-IN,en;q=0.8")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != enums.LocaleHindi {
		t.Fatalf("expected hi got %s", got)
	}
}
