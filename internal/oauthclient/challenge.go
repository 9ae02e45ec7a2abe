// Package oauthclient implements the upstream-facing half of OAuth 2.1
// authorization-code-with-PKCE: parsing a 401's WWW-Authenticate challenge,
// generating PKCE verifiers/state, and exchanging an authorization code for
// a token on behalf of the connection manager.
package oauthclient

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Challenge is a parsed WWW-Authenticate Bearer challenge.
type Challenge struct {
	Scheme              string
	Realm               string
	Issuer              string
	ResourceMetadataURL string
	Scope               string
	Error               string
	ErrorDescription    string
}

var authParamPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseWWWAuthenticate parses a WWW-Authenticate header value of the Bearer
// scheme, extracting whichever of realm/scope/resource_metadata/error the
// issuer included.
func ParseWWWAuthenticate(header string) (*Challenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty WWW-Authenticate header")
	}

	parts := strings.SplitN(header, " ", 2)
	challenge := &Challenge{Scheme: parts[0]}

	if len(parts) > 1 {
		for _, match := range authParamPattern.FindAllStringSubmatch(parts[1], -1) {
			key, value := strings.ToLower(match[1]), match[2]
			switch key {
			case "realm":
				challenge.Realm = value
				if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
					challenge.Issuer = value
				}
			case "resource_metadata":
				challenge.ResourceMetadataURL = value
			case "scope":
				challenge.Scope = value
			case "error":
				challenge.Error = value
			case "error_description":
				challenge.ErrorDescription = value
			}
		}
	}

	return challenge, nil
}

// ParseWWWAuthenticateFromResponse extracts a challenge from a 401 response,
// returning nil if the response isn't a 401 or carries no such header.
func ParseWWWAuthenticateFromResponse(resp *http.Response) *Challenge {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return nil
	}
	header := resp.Header.Get("WWW-Authenticate")
	if header == "" {
		return nil
	}
	challenge, err := ParseWWWAuthenticate(header)
	if err != nil {
		return nil
	}
	return challenge
}
