package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quizbooth/internal/config"
)

func validConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Service.BaseURL = "https://booth.example.com/api"
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	return cfg
}

func TestDefaultConfigValidatesWithBaseURL(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresBaseURL(t *testing.T) {
	cfg := validConfig(t)
	cfg.Service.BaseURL = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing base_url")
	}
	if !strings.Contains(err.Error(), "service.base_url") {
		t.Fatalf("unexpected error: %v", err)
	}
	// The remedy must name the real subcommand.
	if !strings.Contains(err.Error(), "quizbooth config init") {
		t.Fatalf("error should point at 'quizbooth config init': %v", err)
	}
}

func TestValidateRejectsInvertedUploadBounds(t *testing.T) {
	cfg := validConfig(t)
	cfg.Upload.MinEdge = 2048
	cfg.Upload.MaxEdge = 1536
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min_edge > max_edge")
	}
}

func TestValidateRejectsDampingOutOfRange(t *testing.T) {
	cfg := validConfig(t)
	cfg.Upload.ShrinkDamping = 1.0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shrink_damping >= 1")
	}
}

func TestValidateSurveyRequiresCompanionURLs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Survey.WorkshopURL = "https://survey.example.com/workshop"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when lookup_url is missing")
	}
	cfg.Survey.LookupURL = "https://survey.example.com/lookup"
	cfg.Survey.RegistrationURL = "https://survey.example.com/user_reg"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadParsesTOMLAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[service]
base_url = "https://booth.example.com/api/"

[upload]
max_edge = 2048

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Service.BaseURL != "https://booth.example.com/api" {
		t.Fatalf("base URL not trimmed: %q", cfg.Service.BaseURL)
	}
	if cfg.Upload.MaxEdge != 2048 {
		t.Fatalf("max_edge = %d, want 2048", cfg.Upload.MaxEdge)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Upload.MaxBytes != 10*1024*1024 {
		t.Fatalf("max_bytes default lost: %d", cfg.Upload.MaxBytes)
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	_, _, exists, err := config.Load(missing)
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	// Defaults have no base URL, so validation must fail.
	if err == nil {
		t.Fatal("expected validation error for defaults without base_url")
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[service]") {
		t.Fatal("sample config missing [service] section")
	}
}
