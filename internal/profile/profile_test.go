package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesDefaultProfile(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	active, err := s.Active()
	if err != nil {
		t.Fatal(err)
	}
	if active != DefaultProfileName {
		t.Fatalf("expected default active profile, got %q", active)
	}
	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != DefaultProfileName {
		t.Fatalf("expected exactly the default profile, got %+v", list)
	}
}

func TestCreateSwitchIsolatesDirectories(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create("work", "Work"); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(s.CacheDir(DefaultProfileName), "zones.json"), []byte("default-data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.CacheDir("work"), "zones.json"), []byte("work-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	defaultData, err := os.ReadFile(filepath.Join(s.CacheDir(DefaultProfileName), "zones.json"))
	if err != nil {
		t.Fatal(err)
	}
	workData, err := os.ReadFile(filepath.Join(s.CacheDir("work"), "zones.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(defaultData) == string(workData) {
		t.Fatal("expected isolated cache directories per profile")
	}

	if err := s.Switch("work"); err != nil {
		t.Fatal(err)
	}
	active, err := s.Active()
	if err != nil {
		t.Fatal(err)
	}
	if active != "work" {
		t.Fatalf("expected active=work, got %q", active)
	}
}

func TestDeleteRejectsActiveAndDefault(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create("work", "Work"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(DefaultProfileName); err == nil {
		t.Fatal("expected deleting the default profile to fail")
	}
	if err := s.Switch("work"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("work"); err == nil {
		t.Fatal("expected deleting the active profile to fail")
	}
}

func TestMigrateLegacyCopiesRootConfig(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"base_url":"https://desec.io/api/v1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MigrateLegacy(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(s.ConfigPath(DefaultProfileName))
	if err != nil {
		t.Fatalf("expected migrated config.json, got error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty migrated config")
	}
}

func TestTokenSealRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := SealToken("correct-password", salt, "sk-secret-token-value")
	if err != nil {
		t.Fatal(err)
	}
	plain, err := UnsealToken("correct-password", salt, sealed)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "sk-secret-token-value" {
		t.Fatalf("expected round-tripped token, got %q", plain)
	}
}

func TestTokenUnsealWrongPasswordFailsWithoutLeakingPlaintext(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := SealToken("correct-password", salt, "sk-secret-token-value")
	if err != nil {
		t.Fatal(err)
	}
	plain, err := UnsealToken("wrong-password", salt, sealed)
	if err == nil {
		t.Fatal("expected wrong password to fail")
	}
	if plain != "" {
		t.Fatalf("expected no plaintext on failure, got %q", plain)
	}
}

func TestConfigRoundTripPreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"base_url": "https://desec.io/api/v1",
		"sync_interval_minutes": 15,
		"rate_limit": 1,
		"queue_history_cap": 5000,
		"future_feature_flag": true
	}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Extra) != 1 {
		t.Fatalf("expected 1 preserved unknown key, got %d", len(cfg.Extra))
	}
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Extra["future_feature_flag"]; !ok {
		t.Fatal("expected unknown key to survive a save/load round trip")
	}
}

func TestConfigValidationRejectsOutOfBoundsValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SyncIntervalMinutes = 0
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected sync_interval_minutes below 1 to be rejected")
	}
	cfg = DefaultConfig()
	cfg.RateLimit = 20
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected rate_limit above 10 to be rejected")
	}
}
