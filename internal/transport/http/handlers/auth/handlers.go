package authhandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"opsdesk/internal/domain/auth"
	"opsdesk/internal/transport/http/api"
	"opsdesk/internal/transport/http/middleware"
	"opsdesk/internal/transport/http/shared"
)

type Handler struct {
	Users  auth.StoreAPI
	Secret string
	TTL    time.Duration
}

func NewHandler(users auth.StoreAPI, secret string, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Handler{Users: users, Secret: secret, TTL: ttl}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Get("/auth/me", h.HandleMe)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      auth.User `json:"user"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, reqID) {
		return
	}

	user, err := h.Users.FindUserByEmail(r.Context(), strings.TrimSpace(payload.Email))
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			slog.Warn("user lookup failed", "err", err)
		}
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if user.Status != auth.UserStatusActive || auth.CheckPassword(user.PasswordHash, payload.Password) != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	expiresAt := time.Now().Add(h.TTL)
	token, err := auth.GenerateToken(h.Secret, auth.Claims{UserID: user.ID, StaffID: user.StaffID, RoleName: user.RoleName}, h.TTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}
	api.Success(w, loginResponse{Token: token, ExpiresAt: expiresAt, User: user}, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{
		"id":      user.UserID,
		"staffId": user.StaffID,
		"role":    user.RoleName,
	}, middleware.GetRequestID(r.Context()))
}
