package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFlags(t *testing.T) {
	sessionPath := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(sessionPath, []byte(`{"cookies":[]}`), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		pages       int
		workers     int
		formats     []string
		sessionFile string
		wantErr     bool
	}{
		{"defaults", 3, 8, []string{"json"}, "", false},
		{"zero pages", 0, 1, nil, "", false},
		{"all formats", 1, 64, []string{"json", "CSV", " sqlite "}, "", false},
		{"negative pages", -1, 8, nil, "", true},
		{"zero workers", 3, 0, nil, "", true},
		{"too many workers", 3, 65, nil, "", true},
		{"unknown format", 3, 8, []string{"xml"}, "", true},
		{"existing session file", 3, 8, nil, sessionPath, false},
		{"missing session file", 3, 8, nil, filepath.Join(t.TempDir(), "nope.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.pages, tt.workers, tt.formats, tt.sessionFile)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
