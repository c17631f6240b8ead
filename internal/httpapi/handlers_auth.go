package httpapi

import (
	"net/http"
	"strings"
	"time"

	"lamisys/internal/auth"
	"lamisys/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "password": "required"}))
		return
	}

	now := time.Now()
	ip := clientIP(r)
	if !a.loginLimiter.Allow("ip:"+ip, now) || !a.loginLimiter.Allow("email:"+strings.ToLower(req.Email), now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, sessID, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	cookieValue := a.cookieCodec.EncodeSessionID(sessID)
	auth.SetSessionCookie(w, cookieValue, a.sessionTTL, a.cookieSecure)

	WriteJSON(w, http.StatusOK, u)
}

func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := CurrentSessionID(r.Context())
	if !ok || sessID == "" {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	_ = a.authSvc.Logout(r.Context(), sessID)
	auth.ClearSessionCookie(w, a.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

type recoveryRequest struct {
	Email string `json:"email"`
}

func (a *api) handleAuthRecovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	now := time.Now()
	if !a.loginLimiter.Allow("recovery:"+clientIP(r), now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	if err := a.authSvc.RequestPasswordRecovery(r.Context(), req.Email); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *api) handleAuthChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.authSvc.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.NewPassword); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
