package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MARCER_STRICT", "MARCER_DEBUG", "MARCER_MARC_FILE", "MARCER_FETCH_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Run.Strict {
		t.Error("expected relaxed decoding by default")
	}
	if cfg.FetchTimeout() != 30*time.Second {
		t.Errorf("expected 30s fetch timeout, got %s", cfg.FetchTimeout())
	}
	if cfg.Fetch.MaxBodyBytes != 2<<20 {
		t.Errorf("expected 2MiB body limit, got %d", cfg.Fetch.MaxBodyBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "conf", "marcer.yaml")

	cfg := DefaultConfig()
	cfg.Run.Strict = true
	cfg.Run.MARCFile = "catalog.mrc"
	cfg.Fetch.Timeout = "5s"
	cfg.Logging.Categories = map[string]bool{"fetch": false}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Run.Strict {
		t.Error("expected strict=true")
	}
	if loaded.Run.MARCFile != "catalog.mrc" {
		t.Errorf("expected marc_file=catalog.mrc, got %s", loaded.Run.MARCFile)
	}
	if loaded.FetchTimeout() != 5*time.Second {
		t.Errorf("expected 5s, got %s", loaded.FetchTimeout())
	}
	if loaded.Logging.IsCategoryEnabled("fetch") {
		t.Error("expected fetch category disabled")
	}
	if !loaded.Logging.IsCategoryEnabled("exec") {
		t.Error("unlisted categories should be enabled")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fetch.Timeout != "30s" {
		t.Errorf("expected default timeout, got %s", cfg.Fetch.Timeout)
	}
}

func TestLoad_MissingFileRejectsBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MARCER_FETCH_TIMEOUT", "soon")

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for bad MARCER_FETCH_TIMEOUT without a config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MARCER_STRICT", "true")
	t.Setenv("MARCER_DEBUG", "1")
	t.Setenv("MARCER_MARC_FILE", "/data/env.mrc")
	t.Setenv("MARCER_FETCH_TIMEOUT", "2s")

	path := filepath.Join(t.TempDir(), "marcer.yaml")
	if err := os.WriteFile(path, []byte("run:\n  marc_file: file.mrc\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Run.Strict || !cfg.Run.Debug {
		t.Errorf("expected strict and debug from env, got %+v", cfg.Run)
	}
	if cfg.Run.MARCFile != "/data/env.mrc" {
		t.Errorf("expected env marc file, got %s", cfg.Run.MARCFile)
	}
	if cfg.FetchTimeout() != 2*time.Second {
		t.Errorf("expected 2s, got %s", cfg.FetchTimeout())
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cases := map[string]string{
		"bad yaml":    "run: [",
		"bad timeout": "fetch:\n  timeout: soon\n",
		"bad level":   "logging:\n  level: loud\n",
		"bad format":  "logging:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %q", body)
			}
		})
	}
}
