package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `{"auth_service":"ptc","username":"filed","location":"Paris"}`)

	cfg, err := loadConfig([]string{"-c", path, "-u", "flagged", "-seed", "7"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Username != "flagged" {
		t.Errorf("username = %q, want flag value", cfg.Username)
	}
	if cfg.AuthService != "ptc" || cfg.Location != "Paris" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.Seed != 7 {
		t.Errorf("seed = %d, want 7", cfg.Seed)
	}
}

func TestLoadConfigRequiresUsernameAndLocation(t *testing.T) {
	path := writeConfig(t, `{}`)
	if _, err := loadConfig([]string{"-c", path, "-l", "Paris"}); err == nil {
		t.Error("want error without username")
	}
	if _, err := loadConfig([]string{"-c", path, "-u", "x"}); err == nil {
		t.Error("want error without location")
	}
}

func TestLoadConfigRejectsUnknownAuthService(t *testing.T) {
	path := writeConfig(t, `{"auth_service":"carrier-pigeon","username":"x","location":"y"}`)
	if _, err := loadConfig([]string{"-c", path}); err == nil {
		t.Error("want error for unknown auth service")
	}
}

func TestParseLatLng(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		lat  float64
		lng  float64
	}{
		{"37.77, -122.41", true, 37.77, -122.41},
		{"0,0", true, 0, 0},
		{"San Francisco", false, 0, 0},
		{"95,0,1", false, 0, 0},
		{"991,0", false, 0, 0},
	}
	for _, tt := range tests {
		c, ok := parseLatLng(tt.in)
		if ok != tt.ok {
			t.Errorf("parseLatLng(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && (c.Lat != tt.lat || c.Lng != tt.lng) {
			t.Errorf("parseLatLng(%q) = %v", tt.in, c)
		}
	}
}
