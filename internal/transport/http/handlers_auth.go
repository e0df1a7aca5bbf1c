package httptransport

import (
	"net/http"
	"time"

	"regdesk/internal/admin"
	platformMW "regdesk/internal/platform/middleware"
	"regdesk/internal/session"
	httpjson "regdesk/internal/transport/http/json"
	"regdesk/internal/transport/http/shared"
	dErrors "regdesk/pkg/domain-errors"
)

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	httpjson.WriteJSON(w, status, v)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID         string    `json:"session_id"`
	TwoFactorRequired bool      `json:"two_factor_required"`
	OTPSent           bool      `json:"otp_sent"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func (h *Handler) clientInfo(r *http.Request) session.ClientInfo {
	return session.ClientInfo{
		IP:        platformMW.GetClientIP(r.Context()),
		UserAgent: r.UserAgent(),
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	res, err := h.admins.Login(r.Context(), req.Email, req.Password, h.clientInfo(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.setSessionCookie(w, res.Session)
	writeJSONStatus(w, http.StatusOK, loginResponse{
		SessionID:         res.Session.ID,
		TwoFactorRequired: !res.Session.TwoFactorVerified,
		OTPSent:           res.OTPSent,
		ExpiresAt:         res.Session.ExpiresAt,
	})
}

type verifyTwoFactorRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if err := httpjson.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	token := admin.SessionToken(r)
	if token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.admins.VerifyTwoFactor(r.Context(), token, req.Code); err != nil {
		shared.WriteError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := admin.SessionToken(r)
	if token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.admins.Logout(r.Context(), token); err != nil {
		shared.WriteError(w, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     admin.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     admin.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
