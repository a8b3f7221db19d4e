// Package google is the Google OAuth identity provider: authorization-code
// exchange, ID-token verification and access-token refresh.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
)

var (
	ErrMissingIDToken = errors.New("google: token response has no id_token")
	ErrAudience       = errors.New("google: id token audience mismatch")
)

// Validator verifies an ID token's signature, expiry and audience.
type Validator func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// Config holds the OAuth client credentials. RedirectURL is "postmessage"
// for the popup code flow.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides Google's OAuth endpoint. Tests point it at a stub.
	Endpoint *oauth2.Endpoint
	// Validator defaults to idtoken.Validate.
	Validator Validator
	// HTTPClient is used for the token endpoint when set.
	HTTPClient *http.Client
}

// Provider implements goSessionAuth.GoogleProvider.
type Provider struct {
	oauth    *oauth2.Config
	validate Validator
	client   *http.Client
}

var _ goSessionAuth.GoogleProvider = (*Provider)(nil)

func New(cfg Config) *Provider {
	endpoint := googleoauth.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	validate := cfg.Validator
	if validate == nil {
		validate = idtoken.Validate
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		validate: validate,
		client:   cfg.HTTPClient,
	}
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	if p.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// Exchange trades an authorization code for Google's token set.
func (p *Provider) Exchange(ctx context.Context, code string) (goSessionAuth.GoogleTokens, error) {
	tok, err := p.oauth.Exchange(p.withClient(ctx), code, oauth2.AccessTypeOffline)
	if err != nil {
		return goSessionAuth.GoogleTokens{}, fmt.Errorf("google: exchange code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return goSessionAuth.GoogleTokens{}, ErrMissingIDToken
	}
	return goSessionAuth.GoogleTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		Expiry:       tok.Expiry,
	}, nil
}

// VerifyIDToken validates idToken against the client id and extracts the
// profile claims.
func (p *Provider) VerifyIDToken(ctx context.Context, idToken string) (goSessionAuth.GoogleIdentity, error) {
	payload, err := p.validate(ctx, idToken, p.oauth.ClientID)
	if err != nil {
		return goSessionAuth.GoogleIdentity{}, fmt.Errorf("google: verify id token: %w", err)
	}
	if payload.Audience != p.oauth.ClientID {
		return goSessionAuth.GoogleIdentity{}, ErrAudience
	}

	claim := func(name string) string {
		v, _ := payload.Claims[name].(string)
		return v
	}
	verified, _ := payload.Claims["email_verified"].(bool)

	return goSessionAuth.GoogleIdentity{
		Subject:       payload.Subject,
		Email:         claim("email"),
		EmailVerified: verified,
		GivenName:     claim("given_name"),
		FamilyName:    claim("family_name"),
		Picture:       claim("picture"),
	}, nil
}

// Refresh obtains a new access token. Google usually omits the refresh
// token in the response; callers keep the stored one in that case.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (goSessionAuth.GoogleTokens, error) {
	src := p.oauth.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return goSessionAuth.GoogleTokens{}, fmt.Errorf("google: refresh token: %w", err)
	}
	out := goSessionAuth.GoogleTokens{
		AccessToken: tok.AccessToken,
		Expiry:      tok.Expiry,
	}
	if tok.RefreshToken != refreshToken {
		out.RefreshToken = tok.RefreshToken
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}
	return out, nil
}
