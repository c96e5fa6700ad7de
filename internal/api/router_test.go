package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/service"
	"github.com/ss-345/sweet-shop/internal/infrastructure/db/memory"
)

type testServer struct {
	e     *echo.Echo
	users *memory.UserRepository
}

func newTestServer(t *testing.T, rateLimit float64) *testServer {
	t.Helper()
	users := memory.NewUserRepository()
	authSvc := service.NewAuthService(users, "test-secret", 7*24*time.Hour,
		service.WithBcryptCost(bcrypt.MinCost))
	sweetSvc := service.NewSweetService(memory.NewSweetRepository(), nil, zerolog.Nop())

	e := NewRouter(RouterConfig{
		AuthService:   authSvc,
		SweetService:  sweetSvc,
		Logger:        zerolog.Nop(),
		AuthRateLimit: rateLimit,
		AuthRateBurst: 1,
	})
	return &testServer{e: e, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type sweetBody struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) register(t *testing.T, email, role string) authBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "",
		fmt.Sprintf(`{"name":"Test","email":%q,"password":"secret1","role":%q}`, email, role))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}

func TestRouter_InventoryFlow(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.register(t, "admin@example.com", "admin")
	user := srv.register(t, "user@example.com", "")
	assert.Equal(t, "user", user.User.Role)

	rec := srv.do(t, http.MethodPost, "/sweets", admin.Token,
		`{"name":"Gulab Jamun","category":"Indian","price":5,"quantity":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[sweetBody](t, rec)
	assert.Equal(t, "5", created.Price.String())

	rec = srv.do(t, http.MethodPost, "/sweets/"+created.ID+"/purchase", user.Token, `{"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[sweetBody](t, rec).Quantity)

	rec = srv.do(t, http.MethodGet, "/sweets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]sweetBody](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Quantity)

	rec = srv.do(t, http.MethodPost, "/sweets/"+created.ID+"/purchase", user.Token, `{"quantity":4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock")

	rec = srv.do(t, http.MethodPost, "/sweets/"+created.ID+"/restock", admin.Token, `{"quantity":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 13, decode[sweetBody](t, rec).Quantity)

	rec = srv.do(t, http.MethodGet, "/sweets/search?name=gulab&priceMin=1&priceMax=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]sweetBody](t, rec), 1)

	rec = srv.do(t, http.MethodPut, "/sweets/"+created.ID, admin.Token, `{"price":"6.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[sweetBody](t, rec)
	assert.Equal(t, "6.5", updated.Price.String())
	assert.Equal(t, 13, updated.Quantity)

	rec = srv.do(t, http.MethodDelete, "/sweets/"+created.ID, admin.Token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/sweets/"+created.ID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"sweet not found"}`, rec.Body.String())
}

func TestRouter_AccessGate(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.register(t, "admin@example.com", "admin")
	user := srv.register(t, "user@example.com", "user")

	rec := srv.do(t, http.MethodPost, "/sweets", admin.Token,
		`{"name":"Barfi","category":"Indian","price":6,"quantity":12}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	sweet := decode[sweetBody](t, rec)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		code   int
	}{
		{"create without token", http.MethodPost, "/sweets", "", `{}`, http.StatusUnauthorized},
		{"create as user", http.MethodPost, "/sweets", user.Token, `{"name":"X","category":"Y","price":1,"quantity":1}`, http.StatusForbidden},
		{"update as user", http.MethodPut, "/sweets/" + sweet.ID, user.Token, `{"quantity":1}`, http.StatusForbidden},
		{"delete as user", http.MethodDelete, "/sweets/" + sweet.ID, user.Token, "", http.StatusForbidden},
		{"restock as user", http.MethodPost, "/sweets/" + sweet.ID + "/restock", user.Token, `{"quantity":1}`, http.StatusForbidden},
		{"purchase without token", http.MethodPost, "/sweets/" + sweet.ID + "/purchase", "", "", http.StatusUnauthorized},
		{"purchase with garbage token", http.MethodPost, "/sweets/" + sweet.ID + "/purchase", "garbage", "", http.StatusUnauthorized},
		{"purchase as admin", http.MethodPost, "/sweets/" + sweet.ID + "/purchase", admin.Token, "", http.StatusOK},
		{"restock without quantity", http.MethodPost, "/sweets/" + sweet.ID + "/restock", admin.Token, `{}`, http.StatusBadRequest},
		{"purchase zero", http.MethodPost, "/sweets/" + sweet.ID + "/purchase", user.Token, `{"quantity":0}`, http.StatusBadRequest},
		{"purchase unknown sweet", http.MethodPost, "/sweets/does-not-exist/purchase", user.Token, "", http.StatusNotFound},
		{"me", http.MethodGet, "/auth/me", user.Token, "", http.StatusOK},
		{"me without token", http.MethodGet, "/auth/me", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_LiveRoleIsEnforced(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.register(t, "admin@example.com", "admin")
	ctx := context.Background()

	// Demotion takes effect without re-login.
	require.NoError(t, srv.users.SetRole(ctx, admin.User.ID, domain.RoleUser))
	rec := srv.do(t, http.MethodPost, "/sweets", admin.Token,
		`{"name":"Barfi","category":"Indian","price":6,"quantity":12}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/auth/me", admin.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)

	// A deleted account's token no longer passes the gate.
	require.NoError(t, srv.users.Delete(ctx, admin.User.ID))
	rec = srv.do(t, http.MethodGet, "/auth/me", admin.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = srv.do(t, http.MethodPost, "/sweets/x/purchase", admin.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AuthErrors(t *testing.T) {
	srv := newTestServer(t, 0)
	srv.register(t, "alice@example.com", "user")

	rec := srv.do(t, http.MethodPost, "/auth/register", "",
		`{"name":"Again","email":"alice@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wrong!"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	wrongPassword := rec.Body.String()

	rec = srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"nobody@example.com","password":"wrong!"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, wrongPassword, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[authBody](t, rec).Token)
}

func TestRouter_AuthRateLimit(t *testing.T) {
	srv := newTestServer(t, 0.001)

	body := `{"email":"nobody@example.com","password":"whatever"}`
	first := srv.do(t, http.MethodPost, "/auth/login", "", body)
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := srv.do(t, http.MethodPost, "/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Inventory routes are not limited.
	rec := srv.do(t, http.MethodGet, "/sweets", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RejectsOutOfRangeInput(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.register(t, "admin@example.com", "admin").Token

	rec := srv.do(t, http.MethodPost, "/sweets", admin, `{"name":"Barfi","category":"Indian","price":6,"quantity":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[sweetBody](t, rec).ID

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		code   int
	}{
		{"search huge exponent", http.MethodGet, "/sweets/search?priceMin=1e999999999", "", "", http.StatusBadRequest},
		{"create huge exponent", http.MethodPost, "/sweets", admin, `{"name":"Barfi","category":"Indian","price":1e999999999,"quantity":1}`, http.StatusBadRequest},
		{"update tiny exponent", http.MethodPut, "/sweets/" + id, admin, `{"price":"1e-999999999"}`, http.StatusBadRequest},
		{"restock overflow", http.MethodPost, "/sweets/" + id + "/restock", admin, fmt.Sprintf(`{"quantity":%d}`, math.MaxInt), http.StatusBadRequest},
		{"oversized body", http.MethodPost, "/sweets", admin, `{"name":"` + strings.Repeat("x", 70*1024) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := time.Now()
			rec := srv.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}

	rec = srv.do(t, http.MethodPost, "/sweets/"+id+"/restock", admin, fmt.Sprintf(`{"quantity":%d}`, math.MaxInt))
	assert.JSONEq(t, `{"error":"validation failed: stock would exceed the maximum quantity"}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/sweets/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[sweetBody](t, rec).Quantity)
}

func TestRouter_BindErrorsAreGeneric(t *testing.T) {
	srv := newTestServer(t, 0)
	admin := srv.register(t, "admin@example.com", "admin").Token
	rec := srv.do(t, http.MethodPost, "/sweets", admin, `{"name":"Barfi","category":"Indian","price":6,"quantity":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[sweetBody](t, rec).ID

	for _, tc := range []struct{ path, body string }{
		{"/sweets/" + id + "/purchase", `{"quantity":1.5}`},
		{"/sweets", `{"name":"Barfi","category":"Indian","price":"abc","quantity":1}`},
		{"/sweets", `{"name":`},
	} {
		rec := srv.do(t, http.MethodPost, tc.path, admin, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String(), tc.body)
	}
}

func TestRouter_Operations(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv.do(t, http.MethodGet, "/sweets", "", "")
	rec = srv.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sweetshop_http_requests_total{code="200",method="GET",route="/sweets"}`)

	rec = srv.do(t, http.MethodGet, "/swagger/doc.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/sweets/{id}/purchase")

	rec = srv.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}
