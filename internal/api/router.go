package api

import (
	"net/http"

	"github.com/example/inventory-control/internal/api/middleware"
	"github.com/example/inventory-control/internal/auth"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
	Revocations  *auth.RevocationList
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	h := cfg.Handlers
	ah := cfg.AuthHandlers

	authRequired := middleware.AuthMiddleware(cfg.JWTService, cfg.Revocations)
	authOptional := middleware.OptionalAuthMiddleware(cfg.JWTService, cfg.Revocations)

	withRole := func(handler http.HandlerFunc, roles ...string) http.Handler {
		return authRequired(middleware.RequireRole(roles...)(handler))
	}
	admin := func(handler http.HandlerFunc) http.Handler { return withRole(handler, auth.RoleAdmin) }
	client := func(handler http.HandlerFunc) http.Handler { return withRole(handler, auth.RoleClient) }
	manager := func(handler http.HandlerFunc) http.Handler { return withRole(handler, auth.RoleManager) }

	mux.HandleFunc("GET /health", h.Health)

	// Auth
	mux.Handle("POST /auth/register", authOptional(http.HandlerFunc(ah.Register)))
	mux.HandleFunc("POST /auth/login", ah.Login)
	mux.Handle("POST /auth/logout", authRequired(http.HandlerFunc(ah.Logout)))
	mux.Handle("GET /auth/me", authRequired(http.HandlerFunc(ah.Me)))

	// Admin
	mux.Handle("GET /admin/users", admin(ah.ListUsers))
	mux.Handle("POST /admin/items", admin(h.CreateItem))
	mux.Handle("GET /admin/items", admin(h.ListItems))
	mux.Handle("GET /admin/items/{sku}", admin(h.GetItem))
	mux.Handle("POST /admin/items/{sku}/threshold", admin(h.SetThreshold))
	mux.Handle("POST /admin/items/{sku}/adjust", admin(h.AdjustStock))

	// Client
	mux.Handle("GET /ohs/{first}/{second}", client(ohsLookup(h)))
	mux.Handle("POST /ohs/{sku}/increase", client(h.IncreaseStock))
	mux.Handle("POST /ohs/{sku}/decrease", client(h.DecreaseStock))
	mux.Handle("POST /ohs/{sku}/reserve", client(h.ReserveStock))
	mux.Handle("POST /ohs/{sku}/release", client(h.ReleaseReservation))

	// Manager
	mux.Handle("GET /manager/low-stock", manager(h.LowStock))

	return middleware.Logging(cfg.Logger)(mux)
}

// ohsLookup serves GET /ohs/availability/{sku} and GET /ohs/{sku}/reservations.
// The two patterns overlap in ServeMux, so one route dispatches both.
func ohsLookup(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		first, second := r.PathValue("first"), r.PathValue("second")
		switch {
		case first == "availability":
			r.SetPathValue("sku", second)
			h.GetAvailability(w, r)
		case second == "reservations":
			r.SetPathValue("sku", first)
			h.ListReservations(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}
