package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("KALENDAR_TEST_NAME", "team")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("name: ${KALENDAR_TEST_NAME}\nport: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg sample
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "team" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("name: x\n"), 0o644)

	var cfg sample
	if err := Load(path, &cfg); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadOptional_MissingKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Port: 8080}
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadOptional_MissingStillValidates(t *testing.T) {
	var cfg sample
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Error("expected validation error for zero defaults")
	}
}

func TestLoadOptional_PresentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("port: 7000\n"), 0o644)

	cfg := sample{Name: "default", Port: 8080}
	if err := LoadOptional(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || cfg.Port != 7000 {
		t.Errorf("cfg = %+v", cfg)
	}
}
