package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout marks waits that exceeded their bound. Wrapped by the taxonomy errors below.
var ErrTimeout = errors.New("timed out")

// AuthenticationError means the run cannot obtain a session. Fatal, never retried.
type AuthenticationError struct {
	Stage string // preflight, navigate, form, submit, landing, cookies
	Cause error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed at %s: %v", e.Stage, e.Cause)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// NavigationError means the list view of a page is unusable. Fatal for the rest of the run.
type NavigationError struct {
	Page  int
	Cause error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("list navigation failed on page %d: %v", e.Page, e.Cause)
}

func (e *NavigationError) Unwrap() error {
	return e.Cause
}

// ItemExtractionError is recovered at the extractor boundary and becomes a failure record.
type ItemExtractionError struct {
	ItemID   string
	Attempts int
	Cause    error
}

func (e *ItemExtractionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s: %v (after %d attempts)", e.ItemID, e.Cause, e.Attempts)
	}
	return fmt.Sprintf("%s: %v", e.ItemID, e.Cause)
}

func (e *ItemExtractionError) Unwrap() error {
	return e.Cause
}

// FieldParseError is raised for a single field. Optional fields swallow it.
type FieldParseError struct {
	Field string
	Text  string
	Cause error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("parse %s from %q: %v", e.Field, e.Text, e.Cause)
}

func (e *FieldParseError) Unwrap() error {
	return e.Cause
}

// ErrorLabel maps an error onto a low-cardinality label for metrics and reports.
func ErrorLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var auth *AuthenticationError
	if errors.As(err, &auth) {
		return "authentication"
	}
	var nav *NavigationError
	if errors.As(err, &nav) {
		return "navigation"
	}
	var field *FieldParseError
	if errors.As(err, &field) {
		return "field_parse"
	}
	var item *ItemExtractionError
	if errors.As(err, &item) {
		return "item_extraction"
	}
	return "other"
}
