package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

type tokenServer struct {
	*httptest.Server
	lastGrant string
}

func newTokenServer(t *testing.T, body map[string]any) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ts.lastGrant = r.PostForm.Get("grant_type")
		if r.PostForm.Get("code") == "bad" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newProvider(ts *tokenServer, v Validator) *Provider {
	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "postmessage",
		Endpoint: &oauth2.Endpoint{
			AuthURL:   ts.URL + "/auth",
			TokenURL:  ts.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Validator:  v,
		HTTPClient: ts.Client(),
	})
}

func TestExchangeReturnsIDToken(t *testing.T) {
	ts := newTokenServer(t, map[string]any{
		"access_token":  "ya29.access",
		"refresh_token": "1//refresh",
		"id_token":      "header.payload.sig",
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
	p := newProvider(ts, nil)

	tokens, err := p.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "authorization_code", ts.lastGrant)
	assert.Equal(t, "ya29.access", tokens.AccessToken)
	assert.Equal(t, "1//refresh", tokens.RefreshToken)
	assert.Equal(t, "header.payload.sig", tokens.IDToken)
	assert.False(t, tokens.Expiry.IsZero())
}

func TestExchangeWithoutIDTokenFails(t *testing.T) {
	ts := newTokenServer(t, map[string]any{
		"access_token": "ya29.access",
		"token_type":   "Bearer",
	})
	_, err := newProvider(ts, nil).Exchange(context.Background(), "auth-code")
	assert.ErrorIs(t, err, ErrMissingIDToken)
}

func TestExchangeRejectedCode(t *testing.T) {
	ts := newTokenServer(t, map[string]any{})
	_, err := newProvider(ts, nil).Exchange(context.Background(), "bad")
	require.Error(t, err)
}

func TestRefreshKeepsEmptyRefreshToken(t *testing.T) {
	ts := newTokenServer(t, map[string]any{
		"access_token": "ya29.renewed",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	tokens, err := newProvider(ts, nil).Refresh(context.Background(), "1//refresh")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", ts.lastGrant)
	assert.Equal(t, "ya29.renewed", tokens.AccessToken)
	assert.Empty(t, tokens.RefreshToken, "unchanged refresh token is not reported")
}

func TestVerifyIDTokenMapsClaims(t *testing.T) {
	ts := newTokenServer(t, map[string]any{})
	p := newProvider(ts, func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if token != "good" {
			return nil, errors.New("signature")
		}
		return &idtoken.Payload{
			Audience: audience,
			Subject:  "10769150350006150715113082367",
			Claims: map[string]interface{}{
				"email":          "jane@example.com",
				"email_verified": true,
				"given_name":     "Jane",
				"family_name":    "Doe",
				"picture":        "https://lh3.googleusercontent.com/a/pic",
			},
		}, nil
	})

	id, err := p.VerifyIDToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "10769150350006150715113082367", id.Subject)
	assert.Equal(t, "jane@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Jane", id.GivenName)
	assert.Equal(t, "Doe", id.FamilyName)

	_, err = p.VerifyIDToken(context.Background(), "forged")
	require.Error(t, err)
}

func TestVerifyIDTokenRejectsForeignAudience(t *testing.T) {
	ts := newTokenServer(t, map[string]any{})
	p := newProvider(ts, func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{Audience: "someone-else"}, nil
	})
	_, err := p.VerifyIDToken(context.Background(), "token")
	assert.ErrorIs(t, err, ErrAudience)
}
