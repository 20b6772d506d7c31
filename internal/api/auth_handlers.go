package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/example/inventory-control/internal/api/middleware"
	"github.com/example/inventory-control/internal/auth"
	"go.uber.org/zap"
)

type AuthHandlers struct {
	users       *auth.UserRegistry
	jwtService  *auth.JWTService
	revocations *auth.RevocationList
	logger      *zap.Logger
}

func NewAuthHandlers(users *auth.UserRegistry, jwtService *auth.JWTService, revocations *auth.RevocationList, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:       users,
		jwtService:  jwtService,
		revocations: revocations,
		logger:      logger,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UserResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Register creates an account. Creating an admin account requires the
// caller to already hold an admin token.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleClient
	}

	if req.Role == auth.RoleAdmin {
		claims, ok := middleware.GetUserFromContext(r.Context())
		if !ok || claims.Role != auth.RoleAdmin {
			respondJSONError(w, "only admins can register admin accounts", http.StatusForbidden)
			return
		}
	}

	user, err := h.users.Register(req.Username, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists),
			errors.Is(err, auth.ErrInvalidUsername),
			errors.Is(err, auth.ErrInvalidRole),
			errors.Is(err, auth.ErrPasswordTooShort):
			respondJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("register failed", zap.String("username", req.Username), zap.Error(err))
			respondJSONError(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("user registered", zap.String("username", user.Username), zap.String("role", user.Role))
	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully.",
	})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		respondJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(user.Username, user.Role)
	if err != nil {
		h.logger.Error("token generation failed", zap.String("username", user.Username), zap.Error(err))
		respondJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// Logout revokes the caller's token until it would have expired anyway.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	expiresAt := time.Now().Add(h.jwtService.GetAccessTokenExpiry())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	h.revocations.Revoke(claims.ID, expiresAt)

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Successfully logged out.",
	})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.users.Get(middleware.GetUsername(r.Context()))
	if !ok {
		respondJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.users.List()
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, out)
}

func toUserResponse(u auth.User) UserResponse {
	return UserResponse{
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
