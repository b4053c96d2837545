package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("hunt.page_url", "https://hunt.example.com/hunt/ep/1/pz/2/")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Title != defaultTitle {
		t.Fatalf("expected title %q, got %q", defaultTitle, cfg.Title)
	}
	if cfg.SessionCookieName != "sessionid" {
		t.Fatalf("expected default cookie name, got %q", cfg.SessionCookieName)
	}
	if cfg.ViewAddress != defaultViewAddress || cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.HandshakeTimeout != 30*time.Second {
		t.Fatalf("expected 30s handshake timeout, got %s", cfg.HandshakeTimeout)
	}
	if !cfg.NotifySound {
		t.Fatalf("expected terminal sound to be enabled by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("HUNTSYNC_HUNT_PAGE_URL", "https://hunt.example.com/hunt/ep/1/pz/9/")
	t.Setenv("HUNTSYNC_SESSION_TOKEN", "opaque-session")
	t.Setenv("HUNTSYNC_NOTIFY_SOUND", "false")
	t.Setenv("HUNTSYNC_TRANSPORT_HANDSHAKE_TIMEOUT", "5s")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PageURL != "https://hunt.example.com/hunt/ep/1/pz/9/" {
		t.Fatalf("unexpected page url %q", cfg.PageURL)
	}
	if cfg.SessionToken != "opaque-session" {
		t.Fatalf("unexpected session token %q", cfg.SessionToken)
	}
	if cfg.NotifySound {
		t.Fatalf("expected terminal sound to be disabled")
	}
	if cfg.HandshakeTimeout != 5*time.Second {
		t.Fatalf("expected 5s handshake timeout, got %s", cfg.HandshakeTimeout)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
		expected string
	}{
		{name: "missing page url", settings: map[string]any{}, expected: "hunt.page_url"},
		{
			name:     "blank cookie name",
			settings: map[string]any{"hunt.page_url": "https://hunt.example.com/p/", "session.cookie_name": " "},
			expected: "session.cookie_name",
		},
		{
			name:     "zero handshake timeout",
			settings: map[string]any{"hunt.page_url": "https://hunt.example.com/p/", "transport.handshake_timeout": "0s"},
			expected: "transport.handshake_timeout",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.settings {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.expected) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.expected, err)
			}
		})
	}
}
