package httptransport

import (
	"net/http"

	"regdesk/internal/csrf"
	"regdesk/internal/transport/http/shared"
)

// handleCSRFToken issues a fresh token. The raw token goes back in the
// response body for the client to echo on the header channel; the signed
// envelope travels only in the cookie.
func (h *Handler) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, envelope, err := h.csrf.Issue()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrf.CookieName,
		Value:    envelope,
		Path:     "/",
		MaxAge:   int(h.csrf.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSONStatus(w, http.StatusOK, token)
}
