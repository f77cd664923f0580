package authhandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leavehub/internal/domain/auth"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
)

type Handler struct {
	Store     *auth.Store
	JWTSecret string
	TokenTTL  time.Duration
}

func NewHandler(store *auth.Store, jwtSecret string) *Handler {
	return &Handler{Store: store, JWTSecret: jwtSecret, TokenTTL: 8 * time.Hour}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || payload.Password == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_request", "email and password are required", reqID)
		return
	}

	user, err := h.Store.FindActiveUserByEmail(r.Context(), email)
	if err != nil {
		// Same response for unknown user and bad password.
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
		return
	}
	if err := auth.CheckPassword(user.Password, payload.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
		return
	}

	expiresAt := time.Now().Add(h.TokenTTL)
	token, err := auth.GenerateToken(h.JWTSecret, auth.Claims{
		UserID:   user.ID,
		RoleID:   user.RoleID,
		RoleName: user.RoleName,
	}, h.TokenTTL)
	if err != nil {
		slog.Error("token generation failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to issue token", reqID)
		return
	}

	if err := h.Store.UpdateLastLogin(r.Context(), user.ID); err != nil {
		slog.Warn("last login update failed", "userId", user.ID, "err", err)
	}

	api.Success(w, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Role:      user.RoleName,
	}, reqID)
}
