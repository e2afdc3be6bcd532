package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Network.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.Network.TimeoutSeconds)
	}
	if !cfg.Install.CreateDesktopEntries {
		t.Error("CreateDesktopEntries default should be true")
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[network]
retries = 7

[provider.github]
token = "ghp_secret"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Network.Retries != 7 {
		t.Errorf("Retries = %d, want 7", cfg.Network.Retries)
	}
	if cfg.Network.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want default 30", cfg.Network.TimeoutSeconds)
	}
	if cfg.Provider["github"].Token != "ghp_secret" {
		t.Errorf("github token = %q", cfg.Provider["github"].Token)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("network = [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on malformed TOML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Network.Retries = 5
	cfg.Provider["gitlab"] = Provider{Token: "glpat", BaseURL: "https://git.internal"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Network.Retries != 5 {
		t.Errorf("Retries = %d, want 5", loaded.Network.Retries)
	}
	if loaded.Provider["gitlab"].BaseURL != "https://git.internal" {
		t.Errorf("gitlab base_url = %q", loaded.Provider["gitlab"].BaseURL)
	}
}

func TestGetSetByDotPath(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("network.timeout_seconds", "60"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := cfg.Get("network.timeout_seconds")
	if err != nil || got != "60" {
		t.Errorf("Get() = %q, %v; want 60", got, err)
	}

	if err := cfg.Set("install.require_checksum", "true"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if !cfg.Install.RequireChecksum {
		t.Error("Set(install.require_checksum) did not coerce to boolean")
	}

	if err := cfg.Set("provider.github.token", "tok"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if cfg.Provider["github"].Token != "tok" {
		t.Error("Set(provider.github.token) did not update the map")
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("network.retries", "lots"); err == nil {
		t.Error("Set() should reject non-integer retries")
	}
	if err := cfg.Set("network.retries", "-1"); err == nil {
		t.Error("Set() should reject negative retries")
	}
	if err := cfg.Set("install.require_checksum", "si"); err == nil {
		t.Error("Set() should reject non-boolean values")
	}
	if err := cfg.Set("no.such.key", "x"); err == nil {
		t.Error("Set() should reject unknown keys")
	}
}

func TestReset(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("network.timeout_seconds", "90"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Reset("network.timeout_seconds"); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if cfg.Network.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds after Reset = %d, want 30", cfg.Network.TimeoutSeconds)
	}
}

func TestAllCoversKeys(t *testing.T) {
	all := Default().All()
	for _, key := range Keys() {
		if _, ok := all[key]; !ok {
			t.Errorf("All() missing key %s", key)
		}
	}
}
