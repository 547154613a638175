package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv(HostEnvKey, "")

	cfg := DefaultConfig()
	if cfg.Port != 31950 {
		t.Errorf("port = %d, want 31950", cfg.Port)
	}
	if cfg.APIVersion != "2" {
		t.Errorf("api version = %q, want 2", cfg.APIVersion)
	}
	if cfg.RunTimeout != 600*time.Second {
		t.Errorf("run timeout = %v, want 600s", cfg.RunTimeout)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("poll interval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.Mount != "both" {
		t.Errorf("mount = %q, want both", cfg.Mount)
	}
	if cfg.Host != "" {
		t.Errorf("host = %q, want empty without OT2_HOST", cfg.Host)
	}
}

func TestHostEnvOverride(t *testing.T) {
	t.Setenv(HostEnvKey, "169.254.9.30")

	cfg := DefaultConfig()
	if cfg.Host != "169.254.9.30" {
		t.Errorf("host = %q, want OT2_HOST value", cfg.Host)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv(HostEnvKey, "")

	path := filepath.Join(t.TempDir(), "ot2_runner.yaml")
	body := "host: bench-ot2.local\nrun_timeout: 120s\npoll_interval: 500ms\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "bench-ot2.local" {
		t.Errorf("host = %q, want bench-ot2.local", cfg.Host)
	}
	if cfg.RunTimeout != 120*time.Second {
		t.Errorf("run timeout = %v, want 120s", cfg.RunTimeout)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("poll interval = %v, want 500ms", cfg.PollInterval)
	}
	// Untouched fields keep their defaults.
	if cfg.Port != 31950 {
		t.Errorf("port = %d, want default 31950", cfg.Port)
	}
}

func TestLoad_EnvHostSurvivesFileWithoutHost(t *testing.T) {
	t.Setenv(HostEnvKey, "169.254.9.30")

	path := filepath.Join(t.TempDir(), "ot2_runner.yaml")
	if err := os.WriteFile(path, []byte("port: 31950\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "169.254.9.30" {
		t.Errorf("host = %q, want env default", cfg.Host)
	}
}

func TestLoad_MissingExplicitFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ot2_runner.yaml")
	if err := os.WriteFile(path, []byte("host: [unclosed\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
