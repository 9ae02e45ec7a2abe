package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field   string
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

func (ve ValidationErrors) HasErrors() bool { return len(ve) > 0 }

func (ve *ValidationErrors) add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}

// Validate checks every upstream definition for the transport-selector
// exclusivity and required-field rules from §3: exactly one of Local,
// StreamableHTTP, or SSE must be set, matching Type.
func (c Config) Validate() error {
	var errs ValidationErrors

	for name, u := range c.Upstreams {
		if strings.TrimSpace(name) == "" {
			errs.add("upstreams", "upstream name cannot be empty")
			continue
		}
		if strings.ContainsAny(name, " \t\n") {
			errs.add(name, "upstream name cannot contain whitespace")
		}

		set := 0
		if u.Local != nil {
			set++
		}
		if u.StreamableHTTP != nil {
			set++
		}
		if u.SSE != nil {
			set++
		}
		if set != 1 {
			errs.add(name, fmt.Sprintf("exactly one of local/streamableHttp/sse must be set, found %d", set))
			continue
		}

		switch u.Type {
		case TransportStdio:
			if u.Local == nil {
				errs.add(name, "type stdio requires a local block")
			} else if len(u.Local.Command) == 0 {
				errs.add(name+".local", "command is required")
			}
		case TransportStreamableHTTP:
			if u.StreamableHTTP == nil {
				errs.add(name, "type streamable-http requires a streamableHttp block")
			} else if u.StreamableHTTP.URL == "" {
				errs.add(name+".streamableHttp", "url is required")
			}
		case TransportSSE:
			if u.SSE == nil {
				errs.add(name, "type sse requires an sse block")
			} else if u.SSE.URL == "" {
				errs.add(name+".sse", "url is required")
			}
		default:
			errs.add(name, fmt.Sprintf("unknown transport type %q", u.Type))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
