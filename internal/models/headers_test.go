package models

import (
	"testing"
)

func TestCliHeaders_ParseEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		header    string
		wantValue string
		wantErr   bool
	}{
		{"spaces around name", "  X-Tenant  : acme", "X-Tenant", "acme", false},
		{"spaces around value", "X-Tenant:   acme  ", "X-Tenant", "acme", false},
		{"inner spaces kept", "X-Note: value with spaces", "X-Note", "value with spaces", false},
		{"colon in value", "X-Origin: https://erp.example.com:8443/web", "X-Origin", "https://erp.example.com:8443/web", false},
		{"split on first colon", "Authorization: Bearer: token", "Authorization", "Bearer: token", false},
		{"equals sign in value", "X-Equation: 1+1=2", "X-Equation", "1+1=2", false},
		{"empty value allowed", "X-Empty:", "X-Empty", "", false},
		{"missing colon", "X-Tenant acme", "", "", true},
		{"missing name", ":acme", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, err := CliHeaders{tt.input}.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if _, ok := headers[tt.header]; !ok {
				t.Fatalf("header %q missing, got %v", tt.header, headers)
			}
			if got := headers.Get(tt.header); got != tt.wantValue {
				t.Errorf("value = %q, want %q", got, tt.wantValue)
			}
		})
	}
}

func TestCliHeaders_ParseEmpty(t *testing.T) {
	for name, input := range map[string]CliHeaders{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			headers, err := input.Parse()
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(headers) != 0 {
				t.Errorf("expected no headers, got %v", headers)
			}
		})
	}
}

func TestCliHeaders_ParseErrorNamesPosition(t *testing.T) {
	_, err := CliHeaders{"X-Ok: 1", "broken"}.Parse()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got[:len("--header #2")] != "--header #2" {
		t.Errorf("error %q does not name the second header", got)
	}
}
