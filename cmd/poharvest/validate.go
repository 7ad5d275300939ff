package main

import (
	"fmt"
	"os"
	"strings"
)

// ValidateFlags range-checks the effective run flags.
func ValidateFlags(pages, workers int, formats []string, sessionFile string) error {
	if pages < 0 || pages > 10000 {
		return fmt.Errorf("pages must be between 0 and 10000, got %d", pages)
	}

	if workers < 1 || workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64, got %d", workers)
	}

	validFormats := map[string]bool{
		"json":   true,
		"csv":    true,
		"sqlite": true,
	}
	for _, f := range formats {
		if !validFormats[strings.ToLower(strings.TrimSpace(f))] {
			return fmt.Errorf("invalid output format: %s (valid: json, csv, sqlite)", f)
		}
	}

	if sessionFile != "" {
		if _, err := os.Stat(sessionFile); err != nil {
			return fmt.Errorf("session file: %w", err)
		}
	}

	return nil
}
