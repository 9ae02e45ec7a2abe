package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessagesIncludeKeyFields(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"NotFoundError", &NotFoundError{Kind: "tool", Key: "frobnicate"}, "tool not found: frobnicate"},
		{"NotConnectedError", &NotConnectedError{Server: "github", Status: "connecting"}, "upstream github is not connected (status: connecting)"},
		{"CircularDependencyError", &CircularDependencyError{Server: "self"}, "upstream self resolves back to this proxy"},
		{"OAuthRequiredError", &OAuthRequiredError{Server: "jira", AuthorizationURL: "https://auth.example/authorize"}, "upstream jira requires authorization at https://auth.example/authorize"},
		{"CancelledError", &CancelledError{Operation: "connect retry backoff"}, "connect retry backoff was cancelled"},
		{"InvalidParamsError", &InvalidParamsError{Reason: "missing name"}, "invalid params: missing name"},
		{"UpstreamUnavailableError", &UpstreamUnavailableError{Server: "github", Status: "error"}, "upstream github unavailable (status: error)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestConnectionFailedErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &ConnectionFailedError{Server: "github", Attempt: 3, Cause: cause}

	assert.Contains(t, err.Error(), "github failed to connect after 3 attempts")
	assert.ErrorIs(t, err, cause)
}

func TestConfigErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("yaml: line 4: mapping expected")
	err := &ConfigError{Path: "/etc/mcpaggregator/config.yaml", Cause: cause}

	assert.Contains(t, err.Error(), "/etc/mcpaggregator/config.yaml")
	assert.ErrorIs(t, err, cause)
}

func TestCapabilityConflictErrorFormatsCategoryAndKey(t *testing.T) {
	err := &CapabilityConflictError{
		Server: "jira", Category: "tools", Key: "listChanged",
		Existing: true, Incoming: false,
	}
	assert.Contains(t, err.Error(), "tools.listChanged")
	assert.Contains(t, err.Error(), "jira")
}

func TestErrorsAsDistinguishesVariants(t *testing.T) {
	var err error = &NotConnectedError{Server: "a", Status: "error"}

	var notConnected *NotConnectedError
	assert.True(t, errors.As(err, &notConnected))

	var notFound *NotFoundError
	assert.False(t, errors.As(err, &notFound))
}
