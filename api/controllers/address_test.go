package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/api/middleware"
	"github.com/angelmondragon/kirana-backend/internal/address"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

type stubAddressService struct {
	address.Service
	created *address.AddressInput
	deleted uuid.UUID
	err     error
}

func (s *stubAddressService) Create(_ context.Context, _ uuid.UUID, input address.AddressInput) (*address.AddressDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = &input
	return &address.AddressDTO{ID: uuid.New(), Name: input.Name, IsDefault: true}, nil
}

func (s *stubAddressService) Delete(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = id
	return nil
}

func withAddressParam(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(addressIDParam, id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middleware.WithCustomerID(ctx, uuid.New()))
}

func TestAddressCreateValidatesBody(t *testing.T) {
	t.Parallel()

	svc := &stubAddressService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/addresses", strings.NewReader(`{"name":"Home","house":"12"}`))
	req = req.WithContext(middleware.WithCustomerID(req.Context(), uuid.New()))
	resp := httptest.NewRecorder()
	AddressCreate(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing street, got %d", resp.Code)
	}
	if svc.created != nil {
		t.Fatalf("service must not be called on invalid input")
	}
}

func TestAddressCreate(t *testing.T) {
	t.Parallel()

	svc := &stubAddressService{}
	body := `{"name":"Home","house":"12","street":"MG Road","landmark":"Temple"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/addresses", strings.NewReader(body))
	req = req.WithContext(middleware.WithCustomerID(req.Context(), uuid.New()))
	resp := httptest.NewRecorder()
	AddressCreate(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created == nil || svc.created.Landmark == nil || *svc.created.Landmark != "Temple" {
		t.Fatalf("unexpected input %+v", svc.created)
	}
}

func TestAddressDelete(t *testing.T) {
	t.Parallel()

	svc := &stubAddressService{}
	id := uuid.New()
	req := withAddressParam(httptest.NewRequest(http.MethodDelete, "/api/v1/addresses/"+id.String(), nil), id.String())
	resp := httptest.NewRecorder()
	AddressDelete(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if svc.deleted != id {
		t.Fatalf("expected %s deleted, got %s", id, svc.deleted)
	}
}

func TestAddressDeleteBadID(t *testing.T) {
	t.Parallel()

	req := withAddressParam(httptest.NewRequest(http.MethodDelete, "/api/v1/addresses/x", nil), "x")
	resp := httptest.NewRecorder()
	AddressDelete(&stubAddressService{}, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAddressDeleteNotFound(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &stubAddressService{err: pkgerrors.New(pkgerrors.CodeNotFound, "address not found")}
	req := withAddressParam(httptest.NewRequest(http.MethodDelete, "/api/v1/addresses/"+id.String(), nil), id.String())
	resp := httptest.NewRecorder()
	AddressDelete(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
