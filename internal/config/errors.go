package config

import "fmt"

// ConfigurationError is a structured error raised while loading or
// validating the upstream configuration, with enough context for a user
// to locate and fix the offending file.
type ConfigurationError struct {
	FilePath string
	Message  string
}

func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ce.FilePath, ce.Message)
}

// ConfigurationErrorCollection holds every error found while loading a
// configuration tree; loading continues past individual file errors so a
// single bad upstream definition does not hide problems in the others.
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError
}

func (cec ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}
	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}
	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

func (cec *ConfigurationErrorCollection) HasErrors() bool { return len(cec.Errors) > 0 }

func (cec *ConfigurationErrorCollection) Add(filePath, message string) {
	cec.Errors = append(cec.Errors, ConfigurationError{FilePath: filePath, Message: message})
}
