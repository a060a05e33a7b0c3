package authhandler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

type Handler struct {
	Store  leave.Store
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func NewHandler(store leave.Store, secret string, ttl time.Duration) *Handler {
	return &Handler{Store: store, Secret: secret, TTL: ttl, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userView  `json:"user"`
}

type userView struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email)
	v.Required("password", payload.Password)
	if v.Reject(w, requestID) {
		return
	}

	var user auth.User
	err := h.Store.WithinTx(r.Context(), func(tx leave.Tx) error {
		var err error
		user, err = tx.UserByEmail(r.Context(), strings.TrimSpace(payload.Email))
		return err
	})
	if errors.Is(err, leave.ErrNotFound) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
		return
	}
	if err != nil {
		api.FailError(w, r, err, requestID)
		return
	}
	if !user.Active || auth.CheckPassword(user.PasswordHash, payload.Password) != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
		return
	}

	token, err := auth.GenerateToken(h.Secret, auth.Claims{UserID: user.ID, Role: user.Role}, h.TTL)
	if err != nil {
		api.FailError(w, r, err, requestID)
		return
	}
	api.Success(w, loginResponse{
		Token:     token,
		ExpiresAt: h.Now().UTC().Add(h.TTL),
		User:      userView{ID: user.ID, Email: user.Email, Role: user.Role},
	}, requestID)
}
