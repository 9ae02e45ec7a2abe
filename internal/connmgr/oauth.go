package connmgr

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"mcpaggregator/internal/errs"
	"mcpaggregator/internal/mcpserver"
	"mcpaggregator/internal/oauthclient"
	"mcpaggregator/pkg/logging"
)

// beginAuthorizationLocked starts an OAuth 2.1 authorization-code-with-PKCE
// flow for rec, registering a pending authorization under a fresh state
// value and returning the URL the caller must send the user to. Caller
// must hold m.mu. An upstream with no OAuth configuration yields an empty
// URL; the record is still left in AwaitingOAuth so the operator sees the
// misconfiguration rather than a silent retry loop.
func (m *Manager) beginAuthorizationLocked(ctx context.Context, rec *Record, authErr *mcpserver.AuthRequiredError) string {
	oauthCfg := rec.Config.OAuth()
	if oauthCfg == nil {
		logging.Warn("connmgr", "upstream %s demanded authorization but has no oauth config", rec.Name)
		return ""
	}

	issuer := issuerFor(authErr, rec.Config.URL())
	metadata := m.discoverer.Discover(ctx, issuer)

	pkce, err := oauthclient.GeneratePKCE()
	if err != nil {
		logging.Error("connmgr", err, "generating PKCE for upstream %s", rec.Name)
		return ""
	}
	state, err := oauthclient.GenerateState()
	if err != nil {
		logging.Error("connmgr", err, "generating OAuth state for upstream %s", rec.Name)
		return ""
	}

	m.states.Put(state, oauthclient.PendingAuthorization{
		Upstream:     rec.Name,
		CodeVerifier: pkce.CodeVerifier,
		Issuer:       issuer,
	})

	endpoint := oauthclient.EndpointConfig{
		ClientID:     oauthCfg.ClientID,
		ClientSecret: oauthCfg.ClientSecret,
		AuthURL:      metadata.AuthorizationEndpoint,
		TokenURL:     metadata.TokenEndpoint,
		RedirectURL:  oauthCfg.RedirectURL,
		Scopes:       oauthCfg.Scopes,
	}

	logging.Audit(logging.AuditEvent{Action: "oauth_authorize_begin", Outcome: "success", Target: rec.Name})
	return oauthclient.AuthorizationURL(endpoint, state, pkce.CodeChallenge)
}

// issuerFor prefers the issuer disclosed by the 401's WWW-Authenticate
// challenge, falling back to the upstream's own URL's origin.
func issuerFor(authErr *mcpserver.AuthRequiredError, fallbackURL string) string {
	if authErr != nil && authErr.Challenge != nil && authErr.Challenge.Issuer != "" {
		return strings.TrimSuffix(authErr.Challenge.Issuer, "/")
	}
	if u, err := url.Parse(fallbackURL); err == nil && u.Scheme != "" && u.Host != "" {
		return strings.TrimSuffix(u.Scheme+"://"+u.Host, "/")
	}
	return strings.TrimSuffix(fallbackURL, "/")
}

// CompleteAuthorization finishes a pending OAuth flow identified by state,
// exchanging code for a token, storing it, and reconnecting the upstream.
// It is the counterpart to an inbound OAuth redirect callback.
func (m *Manager) CompleteAuthorization(ctx context.Context, state, code string) error {
	pending, ok := m.states.Take(state)
	if !ok {
		return &errs.InvalidParamsError{Reason: "unknown or expired oauth state"}
	}

	m.mu.RLock()
	rec, ok := m.records[pending.Upstream]
	m.mu.RUnlock()
	if !ok {
		return &errs.NotFoundError{Kind: "upstream", Key: pending.Upstream}
	}

	oauthCfg := rec.Config.OAuth()
	if oauthCfg == nil {
		return &errs.InvalidParamsError{Reason: "upstream has no oauth config"}
	}

	metadata := m.discoverer.Discover(ctx, pending.Issuer)
	endpoint := oauthclient.EndpointConfig{
		ClientID:     oauthCfg.ClientID,
		ClientSecret: oauthCfg.ClientSecret,
		AuthURL:      metadata.AuthorizationEndpoint,
		TokenURL:     metadata.TokenEndpoint,
		RedirectURL:  oauthCfg.RedirectURL,
		Scopes:       oauthCfg.Scopes,
	}

	token, err := oauthclient.ExchangeCode(ctx, endpoint, code, pending.CodeVerifier)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "oauth_exchange", Outcome: "failure", Target: pending.Upstream, Error: err.Error()})
		return fmt.Errorf("exchanging code for upstream %s: %w", pending.Upstream, err)
	}
	m.tokens.Store(pending.Upstream, token)
	logging.Audit(logging.AuditEvent{Action: "oauth_exchange", Outcome: "success", Target: pending.Upstream})

	_, connectErr := m.CreateOne(ctx, pending.Upstream, rec.Config)
	return connectErr
}
