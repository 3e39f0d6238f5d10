package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/evaluator/entity"
	"github.com/ovaphlow/pitchfork/service-bodycomp/internal/token"
)

// TokenIssuer signs access tokens for authenticated evaluators.
type TokenIssuer interface {
	Issue(evaluatorID, email string) (string, time.Time, error)
	TTL() time.Duration
}

// RefreshSessions stores rotating refresh tokens.
type RefreshSessions interface {
	Open(ctx context.Context, evaluatorID string) (string, time.Time, error)
	Rotate(ctx context.Context, raw string) (evaluatorID, next string, expiresAt time.Time, err error)
	Revoke(ctx context.Context, raw string) error
}

type Handler struct {
	svc      *Service
	issuer   TokenIssuer
	sessions RefreshSessions
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(svc *Service, issuer TokenIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, issuer: issuer, logger: logger, validate: validator.New()}
}

// WithSessions enables refresh tokens on login and the refresh and logout
// endpoints.
func (h *Handler) WithSessions(s RefreshSessions) *Handler {
	h.sessions = s
	return h
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	v, err := h.svc.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrInvalid):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.logger.Warnw("signup failed", "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "signup failed"})
		}
		return
	}
	h.logger.Infow("evaluator registered", "id", v.ID)
	h.writeJSON(w, http.StatusCreated, v)
}

// Login handles POST /auth/login and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	v, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		case errors.Is(err, ErrLocked):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "account_locked"})
		default:
			h.logger.Warnw("login failed", "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		}
		return
	}
	refresh := ""
	if h.sessions != nil {
		if refresh, _, err = h.sessions.Open(r.Context(), v.ID); err != nil {
			h.logger.Warnw("open refresh session failed", "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}
	}
	h.writeToken(w, v, refresh)
}

// Refresh handles POST /auth/refresh, trading a refresh token for a new
// access token and a rotated refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRefresh(w, r)
	if !ok {
		return
	}
	id, next, _, err := h.sessions.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
			return
		}
		h.logger.Warnw("refresh failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	v, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
			return
		}
		h.logger.Warnw("refresh lookup failed", "id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	h.writeToken(w, v, next)
}

// Logout handles POST /auth/logout by revoking the refresh token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRefresh(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Revoke(r.Context(), req.RefreshToken); err != nil {
		h.logger.Warnw("logout failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeRefresh(w http.ResponseWriter, r *http.Request) (RefreshRequest, bool) {
	var req RefreshRequest
	if h.sessions == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "refresh tokens disabled"})
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return req, false
	}
	return req, true
}

func (h *Handler) writeToken(w http.ResponseWriter, v *entity.AuthView, refresh string) {
	tok, _, err := h.issuer.Issue(v.ID, v.Email)
	if err != nil {
		h.logger.Warnw("issue token failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	h.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  tok,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.issuer.TTL() / time.Second),
		RefreshToken: refresh,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
