package handlers

import (
	"net/http"

	"battlefield/internal/auth"
)

// WSUpdates upgrades to a websocket push stream. Browsers cannot set an
// Authorization header on the upgrade request, so the token rides a query
// parameter instead.
func (h *Handlers) WSUpdates(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondMessage(w, http.StatusUnauthorized, "token query parameter required")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondMessage(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	h.serveWS(w, r, claims.UserID)
}
