package models

import (
	"fmt"
	"net/http"
	"strings"
)

// CliHeaders are "Name: Value" strings passed with -H.
type CliHeaders []string

// Parse converts the list into an http.Header.
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("--header #%d: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("missing ':' separator, expected 'Name: Value'")
	}

	name = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(parts[1])

	if name == "" {
		return "", "", fmt.Errorf("header name cannot be empty")
	}

	return name, value, nil
}

// ValidationError describes a rejected header.
type ValidationError struct {
	Field      string // "name" or "value"
	HeaderName string
	Reason     string
	Suggestion string // optional fix hint
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("invalid header [%s]: %s (%s)", e.HeaderName, e.Reason, e.Suggestion)
	}
	return fmt.Sprintf("invalid header [%s]: %s", e.HeaderName, e.Reason)
}

// ConfigError wraps a configuration file failure.
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config file error [%s]: %v", e.FilePath, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
