package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := validate.Struct(cfg); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/vhub.yaml")
	if err != nil {
		t.Fatalf("unexpected error loading missing file: %v", err)
	}
	if cfg.Hub.Name != "vhub" {
		t.Fatalf("expected default hub name, got %q", cfg.Hub.Name)
	}
}

func TestNickMaxMustExceedMin(t *testing.T) {
	cfg := Default()
	cfg.Nick.MinLength = 10
	cfg.Nick.MaxLength = 5
	if err := validate.Struct(cfg); err == nil {
		t.Fatal("expected validation error for max < min")
	}
}
