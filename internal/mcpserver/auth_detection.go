package mcpserver

import (
	"fmt"
	"net/http"
	"strings"

	"mcpaggregator/internal/oauthclient"
)

// AuthRequiredError is returned by a client's Initialize when the upstream
// answered with a 401, carrying whatever the WWW-Authenticate header
// disclosed about where to authorize. The connection manager catches this
// (via errors.As) to drive the Connecting -> AwaitingOAuth transition.
type AuthRequiredError struct {
	URL       string
	Challenge *oauthclient.Challenge
	Err       error
}

func (e *AuthRequiredError) Error() string {
	if e.Challenge != nil && e.Challenge.Issuer != "" {
		return fmt.Sprintf("authorization required for %s (issuer %s)", e.URL, e.Challenge.Issuer)
	}
	return fmt.Sprintf("authorization required for %s", e.URL)
}

func (e *AuthRequiredError) Unwrap() error { return e.Err }

// CheckForAuthRequiredError inspects an error returned by the mcp-go client
// library for signs it wraps a 401 response, returning a structured
// AuthRequiredError if so. The library surfaces the failure as a plain
// error rather than an *http.Response, so this is necessarily a best-effort
// text match rather than a direct status-code check.
func CheckForAuthRequiredError(err error, url string) *AuthRequiredError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "401") && !strings.Contains(errStr, http.StatusText(http.StatusUnauthorized)) {
		return nil
	}

	var challenge *oauthclient.Challenge
	if idx := strings.Index(errStr, "Bearer"); idx >= 0 {
		headerPart := errStr[idx:]
		if end := strings.IndexAny(headerPart, "\n"); end > 0 {
			headerPart = headerPart[:end]
		}
		if parsed, parseErr := oauthclient.ParseWWWAuthenticate(headerPart); parseErr == nil {
			challenge = parsed
		}
	}

	return &AuthRequiredError{
		URL:       url,
		Challenge: challenge,
		Err:       fmt.Errorf("server returned 401 Unauthorized"),
	}
}
