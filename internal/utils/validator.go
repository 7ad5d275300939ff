package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

const (
	// MaxHeaderValueLength bounds a single header value (8KB)
	MaxHeaderValueLength = 8192
)

var (
	// ForbiddenHeaders are set by Chromium's network stack for every request,
	// so an override through Fetch.continueRequest is either dropped or breaks
	// the request. Cookie is owned by the session.
	ForbiddenHeaders = []string{
		"Accept-Charset",
		"Accept-Encoding",
		"Access-Control-Request-Headers",
		"Access-Control-Request-Method",
		"Connection",
		"Content-Length",
		"Cookie",
		"Cookie2",
		"Date",
		"Expect",
		"Host",
		"Keep-Alive",
		"Origin",
		"Referer",
		"TE",
		"Trailer",
		"Transfer-Encoding",
		"Upgrade",
		"Via",
	}

	// ForbiddenHeaderPrefixes cover the Sec-Fetch-*, Sec-CH-* and proxy families.
	ForbiddenHeaderPrefixes = []string{"sec-", "proxy-"}
)

// HeaderValidator checks extra request headers against RFC 7230.
type HeaderValidator struct {
	nameRegex        *regexp.Regexp
	valueRegex       *regexp.Regexp
	maxValueLength   int
	forbiddenHeaders map[string]bool
}

// NewHeaderValidator creates a validator.
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]bool)
	for _, h := range ForbiddenHeaders {
		forbidden[strings.ToLower(h)] = true
	}

	return &HeaderValidator{
		nameRegex:        regexp.MustCompile(`^[A-Za-z0-9-]+$`),
		valueRegex:       regexp.MustCompile(`^[\x20-\x7E\t]*$`),
		maxValueLength:   MaxHeaderValueLength,
		forbiddenHeaders: forbidden,
	}
}

// ValidateName checks a header name.
func (hv *HeaderValidator) ValidateName(name string) error {
	if name == "" {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "header name cannot be empty",
		}
	}

	if !hv.nameRegex.MatchString(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "header name may only contain letters, digits and '-'",
			Suggestion: "use a name like 'X-Tenant' or 'Accept-Language'",
		}
	}

	return nil
}

// ValidateValue checks a header value.
func (hv *HeaderValidator) ValidateValue(name, value string) error {
	if len(value) > hv.maxValueLength {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("value too long: %d bytes (max %d)", len(value), hv.maxValueLength),
		}
	}

	if !hv.valueRegex.MatchString(value) {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "value contains non-printable or non-ASCII characters",
			Suggestion: "remove control characters",
		}
	}

	return nil
}

// ValidateHeader checks name and value.
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	if hv.IsForbidden(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "header is managed by the browser",
			Suggestion: fmt.Sprintf("remove the '%s' header", name),
		}
	}

	if err := hv.ValidateName(name); err != nil {
		return err
	}

	return hv.ValidateValue(name, value)
}

// IsForbidden reports whether name is a browser-managed header.
func (hv *HeaderValidator) IsForbidden(name string) bool {
	lower := strings.ToLower(name)
	if hv.forbiddenHeaders[lower] {
		return true
	}
	for _, prefix := range ForbiddenHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate returns the first invalid header.
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for name, values := range headers {
		for _, value := range values {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
