package httpapi

import (
	"net/http"
	"time"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/middleware"
)

type authData struct {
	User         goSessionAuth.UserView    `json:"user"`
	Session      goSessionAuth.SessionView `json:"session"`
	AccessToken  string                    `json:"accessToken,omitempty"`
	RefreshToken string                    `json:"refreshToken,omitempty"`
}

// writeAuth hands the token pair back on the transport the engine chose:
// HttpOnly cookies for browsers, headers plus the JSON body for mobile-like
// clients.
func (a *API) writeAuth(w http.ResponseWriter, status int, message string, res *goSessionAuth.AuthResult) {
	data := authData{User: res.User, Session: res.Session}

	if res.Transport == goSessionAuth.TransportHeader {
		h := w.Header()
		h.Set("Authorization", "Bearer "+res.Tokens.AccessToken)
		h.Set(middleware.AccessTokenHeader, res.Tokens.AccessToken)
		h.Set(middleware.RefreshTokenHeader, res.Tokens.RefreshToken)
		data.AccessToken = res.Tokens.AccessToken
		data.RefreshToken = res.Tokens.RefreshToken
	} else {
		http.SetCookie(w, a.cookie(middleware.AccessTokenCookie, res.Tokens.AccessToken, a.cfg.JWT.AccessTTL))
		http.SetCookie(w, a.cookie(middleware.RefreshTokenCookie, res.Tokens.RefreshToken, a.cfg.JWT.RefreshTTL))
	}

	success(w, status, message, data)
}

func (a *API) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   a.cfg.Cookie.Domain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   a.cfg.Cookie.Secure,
		SameSite: a.cfg.Cookie.SameSite,
	}
}

func (a *API) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := a.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
