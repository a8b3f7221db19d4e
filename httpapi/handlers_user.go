package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/goSessionAuth/middleware"
)

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	user, err := a.engine.Me(r.Context(), id.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "User fetched successfully", user)
}

func (a *API) sessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	list, err := a.engine.ListSessions(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "Sessions fetched successfully", list)
}

func (a *API) revokeSession(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionId")
	if err := a.engine.RevokeSession(r.Context(), id.UserID, sessionID); err != nil {
		a.fail(w, r, err)
		return
	}
	if sessionID == id.SessionID {
		a.clearCookies(w)
	}
	success(w, http.StatusOK, "Session revoked", nil)
}
