package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.IdleExit != 30*time.Second {
		t.Errorf("idle_exit = %v, want 30s", cfg.IdleExit)
	}
	if cfg.DownloadMedia {
		t.Error("download_media should default to false")
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	body := "timeout: 10s\nidle_exit: 5s\ndownload_media: true\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.IdleExit != 5*time.Second {
		t.Errorf("idle_exit = %v, want 5s", cfg.IdleExit)
	}
	if !cfg.DownloadMedia {
		t.Error("download_media = false, want true")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("timeout: ["), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestDefaultStoreDir_EnvOverride(t *testing.T) {
	t.Setenv("WACLI_STORE", "/tmp/custom-store")
	if got := DefaultStoreDir(); got != "/tmp/custom-store" {
		t.Errorf("DefaultStoreDir = %q, want env override", got)
	}
}

func TestDefaultStoreDir_Home(t *testing.T) {
	t.Setenv("WACLI_STORE", "")
	got := DefaultStoreDir()
	if filepath.Base(got) != ".wacli" {
		t.Errorf("DefaultStoreDir = %q, want a ~/.wacli path", got)
	}
}
