package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

const (
	msgInvalidCredentials = "Invalid credentials"
	msgTokenBlacklisted   = "Token is blacklisted"
	msgIPMismatch         = "Invalid IP address for this refresh token"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgLogoutOK           = "Logout successful. (Token has been blacklisted.)"
	msgNoAccessToken      = "No access token provided."
	msgLogoutFailed       = "An error occurred while processing the logout request."
	msgInvalidToken       = "Invalid token"
	msgTooManyRequests    = "Too many requests"
	msgInternal           = "Internal server error"
	msgBadRequest         = "Invalid request body"
	msgHome               = "Welcome to the Backend Server home page"
	msgAdminHome          = "Welcome to the Backend Server ADMIN home page"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pair)
	case errors.Is(err, tokenguard.ErrInvalidCredentials):
		writeText(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, tokenguard.ErrLoginRateLimited):
		writeText(w, http.StatusTooManyRequests, msgTooManyRequests)
	default:
		h.log.WithContext(r.Context()).Error("login failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, msgInternal)
	}
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.decode(r, &req); err != nil {
		// Missing or empty tokens never reach the engine.
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pair)
	case errors.Is(err, tokenguard.ErrTokenRevoked):
		writeText(w, http.StatusUnauthorized, msgTokenBlacklisted)
	case errors.Is(err, tokenguard.ErrIPMismatch):
		writeText(w, http.StatusUnauthorized, msgIPMismatch)
	case errors.Is(err, tokenguard.ErrRefreshRateLimited):
		writeText(w, http.StatusTooManyRequests, msgTooManyRequests)
	case errors.Is(err, tokenguard.ErrInternal), errors.Is(err, tokenguard.ErrEngineNotReady):
		h.log.WithContext(r.Context()).Error("refresh failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, msgInternal)
	default:
		writeText(w, http.StatusUnauthorized, msgInvalidRefresh)
	}
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, ok := middleware.BearerToken(header, h.prefix)
	if !ok {
		writeText(w, http.StatusBadRequest, msgNoAccessToken)
		return
	}

	err := h.auth.Logout(r.Context(), token)
	switch {
	case err == nil:
		writeText(w, http.StatusOK, msgLogoutOK)
	case errors.Is(err, tokenguard.ErrInternal), errors.Is(err, tokenguard.ErrEngineNotReady):
		h.log.WithContext(r.Context()).Error("logout failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, msgLogoutFailed)
	default:
		writeText(w, http.StatusUnauthorized, msgInvalidToken)
	}
}

func (h *handlers) protectedMessage(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, msgHome)
}

func (h *handlers) adminMessage(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, msgAdminHome)
}

// decode reads one JSON object and validates it.
func (h *handlers) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
