package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if len(cfg.AllowedFileTypes) != 2 || cfg.AllowedFileTypes[0] != "pdf" || cfg.AllowedFileTypes[1] != "docx" {
		t.Errorf("expected default allowed file types [pdf docx], got %v", cfg.AllowedFileTypes)
	}
	if cfg.AccessTokenExpireMinutes != 10080 {
		t.Errorf("expected default token expiry of 10080 minutes, got %d", cfg.AccessTokenExpireMinutes)
	}
	if cfg.JWTExpiry() != 7*24*time.Hour {
		t.Errorf("expected 7 day JWT expiry, got %v", cfg.JWTExpiry())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALLOWED_FILE_TYPES", "pdf")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.AllowedFileTypes) != 1 || cfg.AllowedFileTypes[0] != "pdf" {
		t.Errorf("expected allowed file types [pdf], got %v", cfg.AllowedFileTypes)
	}
	if cfg.JWTExpiry() != 30*time.Minute {
		t.Errorf("expected 30 minute JWT expiry, got %v", cfg.JWTExpiry())
	}
}
