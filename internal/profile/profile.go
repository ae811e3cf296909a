// Package profile is the Profile & Credential Store (§4.6): it isolates
// each profile's configuration, cache, and version history on disk, and
// protects the API token at rest with a password-derived authenticated
// cipher.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultProfileName is the profile created on first run and the one
// migrate_legacy() targets; it cannot be deleted.
const DefaultProfileName = "default"

// Metadata is one profile's entry in the top-level registry.
type Metadata struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Created     time.Time `json:"created"`
	LastUsed    time.Time `json:"last_used"`
}

type registryFile struct {
	Active   string     `json:"active"`
	Profiles []Metadata `json:"profiles"`
}

// Store manages <root>/profiles.json and <root>/profiles/<name>/ (§6
// "Persisted state layout").
type Store struct {
	mu   sync.Mutex
	root string
}

// Open loads (or initializes) the registry rooted at root, creating the
// default profile if none exist yet.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "profiles"), 0o755); err != nil {
		return nil, fmt.Errorf("create profiles directory: %w", err)
	}
	s := &Store{root: root}

	reg, err := s.readRegistry()
	if err != nil {
		return nil, err
	}
	if len(reg.Profiles) == 0 {
		if err := s.createLocked(&reg, DefaultProfileName, "Default"); err != nil {
			return nil, err
		}
		reg.Active = DefaultProfileName
		if err := s.writeRegistry(reg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) registryPath() string { return filepath.Join(s.root, "profiles.json") }

func (s *Store) readRegistry() (registryFile, error) {
	data, err := os.ReadFile(s.registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return registryFile{}, nil
		}
		return registryFile{}, fmt.Errorf("read profiles.json: %w", err)
	}
	var reg registryFile
	if err := json.Unmarshal(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode profiles.json: %w", err)
	}
	return reg, nil
}

func (s *Store) writeRegistry(reg registryFile) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles.json: %w", err)
	}
	tmp, err := os.CreateTemp(s.root, "profiles-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp profiles.json: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp profiles.json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp profiles.json: %w", err)
	}
	if err := os.Rename(tmpName, s.registryPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename profiles.json into place: %w", err)
	}
	return nil
}

// List returns all known profiles.
func (s *Store) List() ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return nil, err
	}
	return reg.Profiles, nil
}

// Active returns the currently active profile's name.
func (s *Store) Active() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return "", err
	}
	return reg.Active, nil
}

// Create registers a new profile and creates its on-disk layout.
func (s *Store) Create(name, display string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return Metadata{}, err
	}
	for _, p := range reg.Profiles {
		if p.Name == name {
			return Metadata{}, fmt.Errorf("profile %q already exists", name)
		}
	}
	if err := s.createLocked(&reg, name, display); err != nil {
		return Metadata{}, err
	}
	if err := s.writeRegistry(reg); err != nil {
		return Metadata{}, err
	}
	return reg.Profiles[len(reg.Profiles)-1], nil
}

// createLocked appends a new Metadata entry to reg and lays out the
// profile's directory tree. Caller holds s.mu.
func (s *Store) createLocked(reg *registryFile, name, display string) error {
	now := time.Now()
	meta := Metadata{Name: name, DisplayName: display, Created: now, LastUsed: now}
	for _, dir := range []string{s.CacheDir(name), s.VersionsDir(name)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create profile directory %s: %w", dir, err)
		}
	}
	reg.Profiles = append(reg.Profiles, meta)
	return nil
}

// Rename changes a profile's display name.
func (s *Store) Rename(name, newDisplay string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return err
	}
	for i := range reg.Profiles {
		if reg.Profiles[i].Name == name {
			reg.Profiles[i].DisplayName = newDisplay
			return s.writeRegistry(reg)
		}
	}
	return fmt.Errorf("profile %q not found", name)
}

// Switch makes name the active profile and bumps its last_used
// timestamp. The caller is responsible for reinitializing every
// per-profile subsystem (cache, version store, credential unseal) after
// a successful switch (§4.6 "signals the caller to reinitialise").
func (s *Store) Switch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return err
	}
	found := false
	for i := range reg.Profiles {
		if reg.Profiles[i].Name == name {
			reg.Profiles[i].LastUsed = time.Now()
			found = true
		}
	}
	if !found {
		return fmt.Errorf("profile %q not found", name)
	}
	reg.Active = name
	return s.writeRegistry(reg)
}

// Delete removes a profile and its on-disk tree. Rejects deletion of the
// active profile or the default profile (§4.6).
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return err
	}
	if name == DefaultProfileName {
		return fmt.Errorf("cannot delete the default profile")
	}
	if name == reg.Active {
		return fmt.Errorf("cannot delete the active profile")
	}
	idx := -1
	for i, p := range reg.Profiles {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("profile %q not found", name)
	}
	if err := os.RemoveAll(s.ProfileDir(name)); err != nil {
		return fmt.Errorf("remove profile directory: %w", err)
	}
	reg.Profiles = append(reg.Profiles[:idx], reg.Profiles[idx+1:]...)
	return s.writeRegistry(reg)
}

// MigrateLegacy copies a pre-multi-profile root-level config.json into
// profiles/default/config.json, if the legacy file exists and the default
// profile has no config yet (§4.6). It does not write profiles.json; the
// default profile's registry entry is the one Open creates.
func (s *Store) MigrateLegacy() error {
	legacyPath := filepath.Join(s.root, "config.json")
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read legacy config.json: %w", err)
	}

	defaultConfigPath := s.ConfigPath(DefaultProfileName)
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return nil // already migrated
	}

	if err := os.MkdirAll(s.ProfileDir(DefaultProfileName), 0o755); err != nil {
		return fmt.Errorf("create default profile directory: %w", err)
	}
	if err := os.WriteFile(defaultConfigPath, data, 0o600); err != nil {
		return fmt.Errorf("write migrated config.json: %w", err)
	}
	return nil
}

// --- Layout accessors ---

func (s *Store) ProfileDir(name string) string  { return filepath.Join(s.root, "profiles", name) }
func (s *Store) ConfigPath(name string) string  { return filepath.Join(s.ProfileDir(name), "config.json") }
func (s *Store) SaltPath(name string) string    { return filepath.Join(s.ProfileDir(name), "salt") }
func (s *Store) CacheDir(name string) string    { return filepath.Join(s.ProfileDir(name), "cache") }
func (s *Store) VersionsDir(name string) string { return filepath.Join(s.ProfileDir(name), "versions") }
