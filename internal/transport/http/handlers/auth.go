package http_handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/baechuer/miniapp-auth/internal/application/auth"
	"github.com/baechuer/miniapp-auth/internal/audit"
	"github.com/baechuer/miniapp-auth/internal/domain"
	"github.com/baechuer/miniapp-auth/internal/logger"
	"github.com/baechuer/miniapp-auth/internal/transport/http/dto"
	"github.com/baechuer/miniapp-auth/internal/transport/http/middleware"
	"github.com/baechuer/miniapp-auth/internal/transport/http/response"
)

type AuthHandler struct {
	svc   *auth.Service
	audit *audit.Logger
}

// NewAuthHandler builds the handler. auditLog may be nil.
func NewAuthHandler(svc *auth.Service, auditLog *audit.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, audit: auditLog}
}

// Login handles POST /login {code} -> {token, user_id}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.loginFailed(w, r, domain.ErrMethodNotAllowed(r.Method))
		return
	}

	var req dto.LoginRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		h.loginFailed(w, r, err)
		return
	}

	req.Code = strings.TrimSpace(req.Code)
	if err := req.Validate(); err != nil {
		h.loginFailed(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Code)
	if err != nil {
		h.loginFailed(w, r, err)
		return
	}

	middleware.LoginAttemptsTotal.WithLabelValues("success").Inc()
	if res.IsNewUser {
		middleware.UsersRegisteredTotal.Inc()
	}

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Bool("new_user", res.IsNewUser).
		Msg("wechat_login")

	response.OK(w, dto.LoginResponse{
		Token:  res.Credential.Token,
		UserID: res.User.ID,
	})
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, err error) {
	outcome := "internal_error"
	var de *domain.Error
	if errors.As(err, &de) {
		outcome = de.Code
	}
	middleware.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	if h.audit != nil {
		h.audit.LoginFailed(r.Context(), middleware.ClientIP(r), outcome)
	}
	response.WriteError(w, r, err)
}

// Me handles GET /me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	u, err := h.svc.Profile(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.ProfileResponse{User: dto.NewUserView(u)})
}

// UpdateProfile handles POST /profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	var req dto.UpdateProfileRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.AvatarURI = strings.TrimSpace(req.AvatarURI)
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	u, err := h.svc.UpdateProfile(r.Context(), uid, req.DisplayName, req.AvatarURI)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().Str("user_id", uid).Msg("profile_updated")
	response.OK(w, dto.ProfileResponse{User: dto.NewUserView(u)})
}
