package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Calendar.WeekStartDay() != time.Sunday {
		t.Errorf("week start = %v", cfg.Calendar.WeekStartDay())
	}
}

func TestStorageConfig_Defaults(t *testing.T) {
	cfg := StorageConfig{Path: "./data"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != StorageBackendFS || cfg.Key != "events" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Dir() != "./data" {
		t.Errorf("dir = %q", cfg.Dir())
	}
}

func TestStorageConfig_Invalid(t *testing.T) {
	cases := []StorageConfig{
		{Backend: "redis", Path: "x"},
		{Backend: StorageBackendFS},
		{Backend: StorageBackendFS, Path: "x", Key: "../escape"},
	}
	for _, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("%+v should fail validation", c)
		}
	}
}

func TestStorageConfig_SQLiteDir(t *testing.T) {
	cfg := StorageConfig{Backend: StorageBackendSQLite, Path: "var/lib/kalendar.db"}
	if cfg.Dir() != "var/lib" {
		t.Errorf("dir = %q", cfg.Dir())
	}
}

func TestCalendarConfig(t *testing.T) {
	cfg := CalendarConfig{Timezone: "UTC", WeekStart: "monday", DefaultColor: "#abc"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.WeekStartDay() != time.Monday {
		t.Errorf("week start = %v", cfg.WeekStartDay())
	}
	loc, _ := cfg.Location()
	if loc != time.UTC {
		t.Errorf("location = %v", loc)
	}

	for _, bad := range []CalendarConfig{
		{Timezone: "Mars/Olympus"},
		{WeekStart: "friday"},
		{DefaultColor: "blue"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("%+v should fail validation", bad)
		}
	}
}
