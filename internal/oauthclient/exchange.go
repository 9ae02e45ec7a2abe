package oauthclient

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// EndpointConfig is the minimal subset of an upstream's OAuth configuration
// needed to build an authorization URL and exchange a code, gathered from
// the challenge (issuer) plus the upstream's static config (client
// credentials, redirect URL, scopes).
type EndpointConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

func (c EndpointConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURL,
			TokenURL: c.TokenURL,
		},
	}
}

// AuthorizationURL builds the URL the user must visit to grant access,
// carrying the PKCE challenge and CSRF state.
func AuthorizationURL(cfg EndpointConfig, state, codeChallenge string) string {
	return cfg.oauth2Config().AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode trades an authorization code plus its PKCE verifier for a
// token.
func ExchangeCode(ctx context.Context, cfg EndpointConfig, code, codeVerifier string) (Token, error) {
	tok, err := cfg.oauth2Config().Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return Token{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	return Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}
