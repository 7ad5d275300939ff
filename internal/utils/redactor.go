package utils

import (
	"net/http"
	"sort"
	"strings"
)

var (
	// SensitiveKeywords mark header names and config keys whose values must not be logged.
	SensitiveKeywords = []string{
		"authorization",
		"token",
		"key",
		"secret",
		"password",
		"credential",
		"cookie",
	}
)

// Redactor masks sensitive values before they reach logs or reports.
type Redactor struct {
	sensitiveKeywords []string
}

// NewRedactor creates a Redactor with the default keywords.
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitive reports whether name contains a sensitive keyword.
func (r *Redactor) IsSensitive(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range r.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactValue masks value when name is sensitive.
func (r *Redactor) RedactValue(name, value string) string {
	if !r.IsSensitive(name) {
		return value
	}

	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}

	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}

	return "***"
}

// RedactHeaders returns a loggable copy of headers (first value per name).
func (r *Redactor) RedactHeaders(headers http.Header) map[string]string {
	result := make(map[string]string)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = r.RedactValue(name, values[0])
	}
	return result
}

// RedactToString formats headers as "A: 1, B: 2" with sensitive values masked.
func (r *Redactor) RedactToString(headers http.Header) string {
	redacted := r.RedactHeaders(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+redacted[name])
	}
	return strings.Join(parts, ", ")
}

// RedactMap walks a nested settings map (as returned by viper.AllSettings) and
// masks every string under a sensitive key. The input is not modified.
func (r *Redactor) RedactMap(settings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = r.RedactMap(val)
		case string:
			if r.IsSensitive(k) && val != "" {
				out[k] = "***"
			} else {
				out[k] = val
			}
		default:
			out[k] = val
		}
	}
	return out
}
