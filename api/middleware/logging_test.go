package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: buf, Format: "json"})
}

func accessEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["message"] == "http.request" {
			return entry
		}
	}
	t.Fatalf("no access line in %s", buf.String())
	return nil
}

func TestLoggingRecordsStatusAndSize(t *testing.T) {
	buf := &bytes.Buffer{}
	r := chi.NewRouter()
	r.Use(Logging(bufferLogger(buf)))
	r.Post("/api/v1/cart/items", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil))

	entry := accessEntry(t, buf)
	if entry["status"] != float64(http.StatusCreated) || entry["bytes"] != float64(len(`{"data":{}}`)) {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["route"] != "/api/v1/cart/items" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestLoggingDefaultsToOKOnImplicitWrite(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(bufferLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if got := accessEntry(t, buf)["status"]; got != float64(http.StatusOK) {
		t.Fatalf("expected 200, got %v", got)
	}
}

func TestLoggingCarriesActorAndReplay(t *testing.T) {
	buf := &bytes.Buffer{}
	customer := uuid.New()
	handler := Logging(bufferLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		noteActor(r.Context(), enums.RoleCustomer, customer)
		noteReplay(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/addresses", nil))

	entry := accessEntry(t, buf)
	if entry["customer_id"] != customer.String() || entry["actor_role"] != string(enums.RoleCustomer) {
		t.Fatalf("expected actor fields, got %v", entry)
	}
	if entry["idempotent_replay"] != true {
		t.Fatalf("expected replay flag, got %v", entry)
	}
}

func TestLoggingLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	r := chi.NewRouter()
	r.Use(Logging(bufferLogger(buf)))
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/api/v1/checkout", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if got := accessEntry(t, buf)["level"]; got != "debug" {
		t.Fatalf("expected debug for health checks, got %v", got)
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	if got := accessEntry(t, buf)["level"]; got != "warn" {
		t.Fatalf("expected warn for 5xx, got %v", got)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := bufferLogger(buf)
	handler := Logging(logg)(Recoverer(logg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("cart exploded")
	})))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(buf.String(), "http.panic") {
		t.Fatalf("expected panic log, got %s", buf.String())
	}
	if got := accessEntry(t, buf)["status"]; got != float64(http.StatusInternalServerError) {
		t.Fatalf("expected access line with 500, got %v", got)
	}
}

func TestRecovererKeepsStartedResponse(t *testing.T) {
	handler := Logging(logger.Nop())(Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late failure")
	})))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected the started 202 to stand, got %d", resp.Code)
	}
	if resp.Body.Len() != 0 {
		t.Fatalf("expected no error envelope after headers, got %s", resp.Body.String())
	}
}

func TestRequestIDKeepsWellFormedIDs(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		seen = w.Header().Get(RequestIDHeader)
	}))

	for _, tc := range []struct {
		in   string
		keep bool
	}{
		{"app-7f3a.retry_2", true},
		{"", false},
		{"bad id with spaces", false},
		{strings.Repeat("a", maxRequestIDLen+1), false},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set(RequestIDHeader, tc.in)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if tc.keep && seen != tc.in {
			t.Fatalf("expected %q kept, got %q", tc.in, seen)
		}
		if !tc.keep {
			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("expected generated uuid for %q, got %q", tc.in, seen)
			}
		}
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.RoleCustomer)(okHandler())

	cases := []struct {
		name string
		ctx  func(context.Context) context.Context
		want int
	}{
		{"no role", func(ctx context.Context) context.Context { return ctx }, http.StatusForbidden},
		{"admin", func(ctx context.Context) context.Context {
			return context.WithValue(ctx, ctxRole, string(enums.RoleAdmin))
		}, http.StatusForbidden},
		{"customer without id", func(ctx context.Context) context.Context {
			return context.WithValue(ctx, ctxRole, string(enums.RoleCustomer))
		}, http.StatusUnauthorized},
		{"customer", func(ctx context.Context) context.Context {
			return WithCustomerID(context.WithValue(ctx, ctxRole, string(enums.RoleCustomer)), uuid.New())
		}, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req = req.WithContext(tc.ctx(req.Context()))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.Code)
		}
	}
}
