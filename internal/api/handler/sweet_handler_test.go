package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/ss-345/sweet-shop/internal/api/middleware"
	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/ports"
)

// stubSweetService records the last input of each call and returns the
// configured result.
type stubSweetService struct {
	sweet  *domain.Sweet
	sweets []*domain.Sweet
	err    error

	lastSearch ports.SearchInput
	lastCreate ports.CreateSweetInput
	lastUpdate ports.UpdateSweetInput
	lastStock  ports.StockChangeInput
	lastID     string
}

func (s *stubSweetService) List(context.Context) ([]*domain.Sweet, error) {
	return s.sweets, s.err
}

func (s *stubSweetService) Search(_ context.Context, in ports.SearchInput) ([]*domain.Sweet, error) {
	s.lastSearch = in
	return s.sweets, s.err
}

func (s *stubSweetService) Get(_ context.Context, id string) (*domain.Sweet, error) {
	s.lastID = id
	return s.sweet, s.err
}

func (s *stubSweetService) Create(_ context.Context, in ports.CreateSweetInput) (*domain.Sweet, error) {
	s.lastCreate = in
	return s.sweet, s.err
}

func (s *stubSweetService) Update(_ context.Context, id string, in ports.UpdateSweetInput) (*domain.Sweet, error) {
	s.lastID = id
	s.lastUpdate = in
	return s.sweet, s.err
}

func (s *stubSweetService) Delete(_ context.Context, id string) error {
	s.lastID = id
	return s.err
}

func (s *stubSweetService) Purchase(_ context.Context, in ports.StockChangeInput) (*domain.Sweet, error) {
	s.lastStock = in
	return s.sweet, s.err
}

func (s *stubSweetService) Restock(_ context.Context, in ports.StockChangeInput) (*domain.Sweet, error) {
	s.lastStock = in
	return s.sweet, s.err
}

func sampleSweet() *domain.Sweet {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Sweet{
		ID:        "s1",
		Name:      "Gulab Jamun",
		Category:  "Indian",
		Price:     decimal.RequireFromString("5.50"),
		Quantity:  20,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func TestSweetHandler_List_ResponseShape(t *testing.T) {
	e := newTestEcho()
	h := NewSweetHandler(&stubSweetService{sweets: []*domain.Sweet{sampleSweet()}})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/sweets", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 sweet, got %d", len(resp))
	}
	got := resp[0]
	if got["id"] != "s1" || got["name"] != "Gulab Jamun" || got["quantity"] != float64(20) {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got["price"] != 5.5 {
		t.Fatalf("price must be a JSON number, got %#v", got["price"])
	}
	if got["createdAt"] != "2026-05-01T10:00:00Z" {
		t.Fatalf("unexpected createdAt: %v", got["createdAt"])
	}
	for _, internal := range []string{"_id", "__v", "CreatedAt"} {
		if _, ok := got[internal]; ok {
			t.Fatalf("storage field %q leaked", internal)
		}
	}
}

func TestSweetHandler_List_EmptyIsArray(t *testing.T) {
	e := newTestEcho()
	h := NewSweetHandler(&stubSweetService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/sweets", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestSweetHandler_Search(t *testing.T) {
	e := newTestEcho()
	stub := &stubSweetService{sweets: []*domain.Sweet{sampleSweet()}}
	h := NewSweetHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/sweets/search?name=Gulab&priceMin=1&priceMax=10.5", nil), rec)
	if err := h.Search(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.lastSearch.Name != "Gulab" || stub.lastSearch.Category != "" {
		t.Fatalf("unexpected filters: %+v", stub.lastSearch)
	}
	if stub.lastSearch.PriceMin == nil || !stub.lastSearch.PriceMin.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected priceMin: %v", stub.lastSearch.PriceMin)
	}
	if stub.lastSearch.PriceMax == nil || !stub.lastSearch.PriceMax.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("unexpected priceMax: %v", stub.lastSearch.PriceMax)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/sweets/search?priceMin=cheap", nil), httptest.NewRecorder())
	if err := h.Search(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for a bad number, got %v", err)
	}

	for _, q := range []string{"priceMin=1e999999999", "priceMax=1e-999999999", "priceMin=" + strings.Repeat("9", 65)} {
		stub.lastSearch = ports.SearchInput{}
		c = e.NewContext(httptest.NewRequest(http.MethodGet, "/sweets/search?"+q, nil), httptest.NewRecorder())
		if err := h.Search(c); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", q, err)
		}
		if stub.lastSearch.PriceMin != nil || stub.lastSearch.PriceMax != nil {
			t.Fatalf("%s: out-of-range bound reached the service", q)
		}
	}
}

func TestSweetHandler_Create(t *testing.T) {
	e := newTestEcho()
	stub := &stubSweetService{sweet: sampleSweet()}
	h := NewSweetHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/sweets",
		`{"name":"Gulab Jamun","category":"Indian","price":5.50,"quantity":20}`), rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !stub.lastCreate.Price.Equal(decimal.RequireFromString("5.5")) || stub.lastCreate.Quantity != 20 {
		t.Fatalf("unexpected input: %+v", stub.lastCreate)
	}

	// Zero stock is a legal starting point.
	c = e.NewContext(jsonRequest(http.MethodPost, "/sweets",
		`{"name":"Barfi","category":"Indian","price":0,"quantity":0}`), httptest.NewRecorder())
	if err := h.Create(c); err != nil {
		t.Fatalf("zero price and quantity should pass: %v", err)
	}

	for name, body := range map[string]string{
		"missing price":     `{"name":"Barfi","category":"Indian","quantity":1}`,
		"missing quantity":  `{"name":"Barfi","category":"Indian","price":1}`,
		"negative quantity": `{"name":"Barfi","category":"Indian","price":1,"quantity":-1}`,
		"missing name":      `{"category":"Indian","price":1,"quantity":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := e.NewContext(jsonRequest(http.MethodPost, "/sweets", body), httptest.NewRecorder())
			expectHTTPError(t, h.Create(c), http.StatusBadRequest)
		})
	}
}

func TestSweetHandler_Update_Partial(t *testing.T) {
	e := newTestEcho()
	stub := &stubSweetService{sweet: sampleSweet()}
	h := NewSweetHandler(stub)

	c := withID(e.NewContext(jsonRequest(http.MethodPut, "/sweets/s1", `{"price":"6.75"}`), httptest.NewRecorder()), "s1")
	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.lastID != "s1" {
		t.Fatalf("unexpected id: %q", stub.lastID)
	}
	in := stub.lastUpdate
	if in.Name != nil || in.Category != nil || in.Quantity != nil {
		t.Fatalf("absent fields must stay nil: %+v", in)
	}
	if in.Price == nil || !in.Price.Equal(decimal.RequireFromString("6.75")) {
		t.Fatalf("unexpected price: %v", in.Price)
	}
}

func TestSweetHandler_Delete(t *testing.T) {
	e := newTestEcho()
	stub := &stubSweetService{}
	h := NewSweetHandler(stub)

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(httptest.NewRequest(http.MethodDelete, "/sweets/s1", nil), rec), "s1")
	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	stub.err = domain.ErrSweetNotFound
	c = withID(e.NewContext(httptest.NewRequest(http.MethodDelete, "/sweets/s1", nil), httptest.NewRecorder()), "s1")
	if err := h.Delete(c); !errors.Is(err, domain.ErrSweetNotFound) {
		t.Fatalf("expected ErrSweetNotFound, got %v", err)
	}
}

func TestSweetHandler_Purchase(t *testing.T) {
	e := newTestEcho()
	stub := &stubSweetService{sweet: sampleSweet()}
	h := NewSweetHandler(stub)

	// No body: one unit.
	req := httptest.NewRequest(http.MethodPost, "/sweets/s1/purchase", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc")
	c := withID(e.NewContext(req, httptest.NewRecorder()), "s1")
	if err := h.Purchase(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.lastStock != (ports.StockChangeInput{SweetID: "s1", Quantity: 1, IdempotencyKey: "abc"}) {
		t.Fatalf("unexpected input: %+v", stub.lastStock)
	}

	// The caller resolved by the gate scopes the key.
	req = httptest.NewRequest(http.MethodPost, "/sweets/s1/purchase", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc")
	c = withID(e.NewContext(req, httptest.NewRecorder()), "s1")
	c.Set(middleware.ContextKeyUser, &domain.User{ID: "u7", Role: domain.RoleUser})
	if err := h.Purchase(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.lastStock.ActorID != "u7" {
		t.Fatalf("expected actor u7, got %+v", stub.lastStock)
	}

	c = withID(e.NewContext(jsonRequest(http.MethodPost, "/sweets/s1/purchase", `{"quantity":3}`), httptest.NewRecorder()), "s1")
	if err := h.Purchase(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.lastStock.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", stub.lastStock.Quantity)
	}

	// An explicit zero is passed through for the service to reject.
	c = withID(e.NewContext(jsonRequest(http.MethodPost, "/sweets/s1/purchase", `{"quantity":0}`), httptest.NewRecorder()), "s1")
	_ = h.Purchase(c)
	if stub.lastStock.Quantity != 0 {
		t.Fatalf("explicit zero must not default to 1")
	}

	stub.err = domain.ErrInsufficientStock
	c = withID(e.NewContext(jsonRequest(http.MethodPost, "/sweets/s1/purchase", `{"quantity":99}`), httptest.NewRecorder()), "s1")
	if err := h.Purchase(c); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestSweetHandler_Restock_MissingQuantity(t *testing.T) {
	e := newTestEcho()
	stub := &stubSweetService{sweet: sampleSweet()}
	h := NewSweetHandler(stub)

	c := withID(e.NewContext(jsonRequest(http.MethodPost, "/sweets/s1/restock", `{}`), httptest.NewRecorder()), "s1")
	_ = h.Restock(c)
	if stub.lastStock.Quantity != 0 {
		t.Fatalf("missing quantity must not get a default, got %d", stub.lastStock.Quantity)
	}

	rec := httptest.NewRecorder()
	c = withID(e.NewContext(jsonRequest(http.MethodPost, "/sweets/s1/restock", `{"quantity":10}`), rec), "s1")
	if err := h.Restock(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.lastStock.Quantity != 10 || rec.Code != http.StatusOK {
		t.Fatalf("unexpected result: %d / %+v", rec.Code, stub.lastStock)
	}
}
