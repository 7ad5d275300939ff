package core

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestHeaderManager_GetMergedHeaders(t *testing.T) {
	t.Run("default Accept-Language present", func(t *testing.T) {
		hm, err := NewHeaderManager(nil, nil, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewHeaderManager: %v", err)
		}

		if got := hm.GetMergedHeaders().Get("Accept-Language"); got != DefaultAcceptLanguage {
			t.Errorf("Accept-Language = %q, want %q", got, DefaultAcceptLanguage)
		}
	})

	t.Run("config overrides default", func(t *testing.T) {
		hm, err := NewHeaderManager(map[string]string{"accept-language": "fr-FR"}, nil, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewHeaderManager: %v", err)
		}

		if got := hm.GetMergedHeaders().Get("Accept-Language"); got != "fr-FR" {
			t.Errorf("Accept-Language = %q, want fr-FR", got)
		}
	})

	t.Run("cli overrides config", func(t *testing.T) {
		hm, err := NewHeaderManager(
			map[string]string{"X-Tenant": "config"},
			[]string{"X-Tenant: cli", "X-Trace: 1"},
			zerolog.Nop(),
		)
		if err != nil {
			t.Fatalf("NewHeaderManager: %v", err)
		}

		headers := hm.GetMergedHeaders()
		if headers.Get("X-Tenant") != "cli" {
			t.Errorf("X-Tenant = %q, want cli", headers.Get("X-Tenant"))
		}
		if headers.Get("X-Trace") != "1" {
			t.Errorf("X-Trace = %q, want 1", headers.Get("X-Trace"))
		}
	})

	t.Run("merged copy is independent", func(t *testing.T) {
		hm, _ := NewHeaderManager(nil, nil, zerolog.Nop())
		first := hm.GetMergedHeaders()
		first.Set("Accept-Language", "de")

		if got := hm.GetMergedHeaders().Get("Accept-Language"); got != DefaultAcceptLanguage {
			t.Errorf("mutation leaked into manager: %q", got)
		}
	})
}

func TestHeaderManager_MalformedCLIHeader(t *testing.T) {
	if _, err := NewHeaderManager(nil, []string{"no-colon"}, zerolog.Nop()); err == nil {
		t.Error("expected parse error for header without colon")
	}
}

func TestHeaderManager_GetHeaders(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]string
		cli     []string
		wantErr bool
	}{
		{"valid headers", map[string]string{"X-Tenant": "acme"}, []string{"X-Trace: 1"}, false},
		{"cookie owned by session", nil, []string{"Cookie: session_id=x"}, true},
		{"host forbidden in config", map[string]string{"Host": "evil"}, nil, true},
		{"control character in value", map[string]string{"X-Bad": "a\x01b"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm, err := NewHeaderManager(tt.config, tt.cli, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewHeaderManager: %v", err)
			}

			_, err = hm.GetHeaders()
			if (err != nil) != tt.wantErr {
				t.Errorf("GetHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHeaderManager_GetSafeHeaders(t *testing.T) {
	hm, err := NewHeaderManager(nil, []string{
		"Authorization: Bearer secret-token-12345",
		"X-API-Key: api-key-67890",
		"X-Trace: visible",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHeaderManager: %v", err)
	}

	safe := hm.GetSafeHeaders()
	if safe["Authorization"] != "Bearer ***" {
		t.Errorf("Authorization = %q, want redacted", safe["Authorization"])
	}
	if safe["X-Api-Key"] == "api-key-67890" {
		t.Error("X-API-Key was not redacted")
	}
	if safe["X-Trace"] != "visible" {
		t.Errorf("X-Trace = %q, want visible", safe["X-Trace"])
	}
}
