package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/inventory-control/internal/auth"
	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/example/inventory-control/internal/infrastructure/lock"
	"github.com/example/inventory-control/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-that-is-at-least-32-chars"

type testEnv struct {
	router    http.Handler
	jwt       *auth.JWTService
	users     *auth.UserRegistry
	repo      *mocks.MockRepository
	publisher *mocks.MockPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := mocks.NewMockRepository()
	publisher := mocks.NewMockPublisher()
	svc := inventory.NewService(repo, lock.NewKeyedMutex(), inventory.WithPublisher(publisher))

	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	users := auth.NewUserRegistry(bcrypt.MinCost)
	revocations := auth.NewRevocationList()
	logger := zap.NewNop()

	router := NewRouter(RouterConfig{
		Handlers:     NewHandlers(svc, logger),
		AuthHandlers: NewAuthHandlers(users, jwtService, revocations, logger),
		JWTService:   jwtService,
		Revocations:  revocations,
		Logger:       logger,
	})
	return &testEnv{router: router, jwt: jwtService, users: users, repo: repo, publisher: publisher}
}

func (e *testEnv) token(t *testing.T, username, role string) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken(username, role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestInventoryFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", auth.RoleAdmin)
	client := env.token(t, "shop", auth.RoleClient)
	manager := env.token(t, "boss", auth.RoleManager)

	rec := env.do(t, http.MethodPost, "/admin/items", admin, CreateItemRequest{
		SKU: "A01", InitialQty: 10, UOM: "pcs", MinQty: 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ItemResponse](t, rec)
	assert.Equal(t, "A01", created.SKU)
	assert.Equal(t, 10, created.Available)
	assert.Empty(t, created.Reservations)

	rec = env.do(t, http.MethodPost, "/ohs/A01/reserve", client, ReserveStockRequest{OrderID: "ord-1", Qty: 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reserved := decode[ReserveResponse](t, rec)
	assert.Equal(t, 4, reserved.Reserved)
	assert.Equal(t, 6, reserved.Available)
	require.NotEmpty(t, reserved.ReservationID)

	rec = env.do(t, http.MethodGet, "/ohs/A01/reservations", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reservations := decode[[]ReservationResponse](t, rec)
	require.Len(t, reservations, 1)
	assert.Equal(t, "ord-1", reservations[0].OrderID)

	rec = env.do(t, http.MethodPost, "/ohs/A01/decrease", client, StockChangeRequest{Qty: 4, Reason: "shipped"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/ohs/availability/A01", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[inventory.Availability](t, rec)
	assert.Equal(t, 6, avail.OnHand)
	assert.Equal(t, 2, avail.Available)
	assert.True(t, avail.LowStock)

	rec = env.do(t, http.MethodGet, "/manager/low-stock", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[[]ItemResponse](t, rec)
	require.Len(t, low, 1)
	assert.Equal(t, "A01", low[0].SKU)

	rec = env.do(t, http.MethodPost, "/ohs/A01/release", client, ReleaseReservationRequest{ReservationID: reserved.ReservationID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	released := decode[ItemResponse](t, rec)
	assert.Equal(t, 0, released.Reserved)
	assert.Equal(t, 6, released.Available)

	rec = env.do(t, http.MethodPost, "/admin/items/A01/adjust", admin, AdjustStockRequest{Delta: -1, Reason: "count"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decode[ItemResponse](t, rec).OnHand)

	rec = env.do(t, http.MethodPost, "/admin/items/A01/threshold", admin, SetThresholdRequest{MinQty: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[ItemResponse](t, rec)
	assert.Equal(t, 1, item.MinQty)
	assert.False(t, item.LowStock)

	rec = env.do(t, http.MethodGet, "/admin/items", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ItemResponse](t, rec), 1)

	assert.NotEmpty(t, env.publisher.Events())
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", auth.RoleAdmin)
	client := env.token(t, "shop", auth.RoleClient)

	rec := env.do(t, http.MethodPost, "/admin/items", admin, CreateItemRequest{SKU: "A01", InitialQty: 2, UOM: "pcs"})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"duplicate sku", http.MethodPost, "/admin/items", admin, CreateItemRequest{SKU: "A01", UOM: "pcs"}, http.StatusConflict, "AlreadyExists"},
		{"negative initial qty", http.MethodPost, "/admin/items", admin, CreateItemRequest{SKU: "B01", InitialQty: -1, UOM: "pcs"}, http.StatusBadRequest, "InvalidValue"},
		{"unknown sku", http.MethodGet, "/admin/items/NOPE", admin, nil, http.StatusNotFound, "NotFound"},
		{"over reserve", http.MethodPost, "/ohs/A01/reserve", client, ReserveStockRequest{OrderID: "o", Qty: 3}, http.StatusConflict, "InsufficientAvailable"},
		{"over decrease", http.MethodPost, "/ohs/A01/decrease", client, StockChangeRequest{Qty: 3}, http.StatusConflict, "InsufficientAvailable"},
		{"negative increase", http.MethodPost, "/ohs/A01/increase", client, StockChangeRequest{Qty: -1}, http.StatusBadRequest, "InvalidValue"},
		{"unknown reservation", http.MethodPost, "/ohs/A01/release", client, ReleaseReservationRequest{ReservationID: "missing"}, http.StatusNotFound, "NotFound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode[errorResponse](t, rec).Kind)
		})
	}
}

func TestOHSLookupRoutes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", auth.RoleAdmin)
	client := env.token(t, "shop", auth.RoleClient)

	for _, sku := range []string{"A01", "reservations"} {
		rec := env.do(t, http.MethodPost, "/admin/items", admin, CreateItemRequest{SKU: sku, InitialQty: 5, UOM: "pcs"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := env.do(t, http.MethodPost, "/ohs/A01/reserve", client, ReserveStockRequest{OrderID: "ord-1", Qty: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/ohs/availability/A01", client, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	avail := decode[inventory.Availability](t, rec)
	assert.Equal(t, "A01", avail.SKU)
	assert.Equal(t, 3, avail.Available)

	rec = env.do(t, http.MethodGet, "/ohs/A01/reservations", client, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]ReservationResponse](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/ohs/availability/reservations", client, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "reservations", decode[inventory.Availability](t, rec).SKU)

	rec = env.do(t, http.MethodGet, "/ohs/availability/NOPE", client, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decode[errorResponse](t, rec).Kind)

	rec = env.do(t, http.MethodGet, "/ohs/A01/moves", client, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveSurvivesPublishFailure(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", auth.RoleAdmin)
	client := env.token(t, "shop", auth.RoleClient)

	rec := env.do(t, http.MethodPost, "/admin/items", admin, CreateItemRequest{SKU: "A01", InitialQty: 10, UOM: "pcs"})
	require.Equal(t, http.StatusCreated, rec.Code)

	env.publisher.PublishErr = assert.AnError
	rec = env.do(t, http.MethodPost, "/ohs/A01/reserve", client, ReserveStockRequest{OrderID: "ord-1", Qty: 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[ReserveResponse](t, rec).ReservationID)
}

func TestStorageFailureHidesDetails(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", auth.RoleAdmin)
	env.repo.ListErr = assert.AnError

	rec := env.do(t, http.MethodGet, "/admin/items", admin, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, "IOFailure", body.Kind)
}

func TestInvalidBody(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "root", auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/admin/items", bytes.NewBufferString(`{"sku":"A01","bogus":1}`))
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/items", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body is required", decode[errorResponse](t, rec).Error)
}

func TestRoleGating(t *testing.T) {
	env := newTestEnv(t)
	client := env.token(t, "shop", auth.RoleClient)
	manager := env.token(t, "boss", auth.RoleManager)
	admin := env.token(t, "root", auth.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"no token", http.MethodGet, "/admin/items", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/admin/items", "not-a-jwt", http.StatusUnauthorized},
		{"client on admin route", http.MethodGet, "/admin/items", client, http.StatusForbidden},
		{"manager on client route", http.MethodGet, "/ohs/A01/reservations", manager, http.StatusForbidden},
		{"client on manager route", http.MethodGet, "/manager/low-stock", client, http.StatusForbidden},
		{"admin on manager route", http.MethodGet, "/manager/low-stock", admin, http.StatusOK},
		{"admin on client route", http.MethodGet, "/ohs/availability/A01", admin, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Username: "shop", Password: "correct-horse", Role: auth.RoleClient,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Username: "shop", Password: "correct-horse", Role: auth.RoleClient,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "shop", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "shop", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tokens := decode[TokenResponse](t, rec)
	assert.Equal(t, "bearer", tokens.TokenType)
	require.NotEmpty(t, tokens.AccessToken)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "access_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	rec = env.do(t, http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shop", decode[UserResponse](t, rec).Username)

	rec = env.do(t, http.MethodPost, "/auth/logout", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token revoked", decode[map[string]string](t, rec)["error"])
}

func TestRegisterAdminRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	req := RegisterRequest{Username: "root2", Password: "correct-horse", Role: auth.RoleAdmin}

	rec := env.do(t, http.MethodPost, "/auth/register", "", req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/register", env.token(t, "shop", auth.RoleClient), req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := env.token(t, "root", auth.RoleAdmin)
	rec = env.do(t, http.MethodPost, "/auth/register", admin, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]UserResponse](t, rec)
	require.Len(t, users, 1)
	assert.Equal(t, auth.RoleAdmin, users[0].Role)
}

func TestRegisterDefaultsToClient(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Username: "shop", Password: "correct-horse"})
	require.Equal(t, http.StatusCreated, rec.Code)

	user, ok := env.users.Get("shop")
	require.True(t, ok)
	assert.Equal(t, auth.RoleClient, user.Role)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(inventory.KindUnderflow))
	assert.Equal(t, http.StatusBadRequest, statusForKind(inventory.KindUnitMismatch))
	assert.Equal(t, http.StatusConflict, statusForKind(inventory.KindConflict))
	assert.Equal(t, http.StatusConflict, statusForKind(inventory.KindInvariantViolation))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(inventory.KindIOFailure))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(inventory.KindUnknown))
}
