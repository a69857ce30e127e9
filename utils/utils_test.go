package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestGetTimestampToken(t *testing.T) {
	token := GetTimestampToken()
	if !regexp.MustCompile(`^\d{8}_\d{6}$`).MatchString(token) {
		t.Errorf("token %q does not match YYYYMMDD_HHMMSS", token)
	}
}

func TestContains(t *testing.T) {
	s := []string{"a", "b"}
	if !Contains(s, "a") || Contains(s, "c") {
		t.Error("Contains misbehaves")
	}
}

func TestGetHostnameOverride(t *testing.T) {
	t.Setenv("VULNIX_HOSTNAME", "scan-target-01")
	if got := GetHostname(); got != "scan-target-01" {
		t.Errorf("GetHostname = %q", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scan_mode: light
confirm_policy: auto
oracle_model: gemini-1.5-pro
fail_on_count: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// flag values already set keep precedence over the file
	cfg := Config{ScanMode: ScanModeFull}
	if err := LoadConfigFile(&cfg, path); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.ScanMode != ScanModeFull {
		t.Errorf("ScanMode = %q, flag value must win", cfg.ScanMode)
	}
	if cfg.ConfirmPolicy != ConfirmAuto {
		t.Errorf("ConfirmPolicy = %q, want auto from file", cfg.ConfirmPolicy)
	}
	if cfg.OracleModel != "gemini-1.5-pro" {
		t.Errorf("OracleModel = %q", cfg.OracleModel)
	}
	if cfg.FailOnCount != 10 {
		t.Errorf("FailOnCount = %d", cfg.FailOnCount)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	cfg := Config{}
	if err := LoadConfigFile(&cfg, "/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for a missing config file")
	}
}
