package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config is a profile's settings file (§4.6 "Config contents"). Unknown
// keys found on load are preserved in Extra and written back out
// unchanged, so a newer client's settings survive a round trip through
// an older one.
type Config struct {
	BaseURL                  string  `json:"base_url" validate:"required,url"`
	SealedToken              string  `json:"sealed_token"`
	SyncIntervalMinutes      int     `json:"sync_interval_minutes" validate:"min=1,max=60"`
	RateLimit                float64 `json:"rate_limit" validate:"min=0,max=10"`
	Theme                    string  `json:"theme,omitempty"`
	Debug                    bool    `json:"debug"`
	ShowLogConsole           bool    `json:"show_log_console"`
	ShowMultilineRecords     bool    `json:"show_multiline_records"`
	OfflineMode              bool    `json:"offline_mode"`
	KeepaliveIntervalSeconds int     `json:"keepalive_interval_seconds" validate:"min=0"`
	QueueHistoryPersist      bool    `json:"queue_history_persist"`
	QueueHistoryCap          int     `json:"queue_history_cap" validate:"min=0"`

	Extra map[string]json.RawMessage `json:"-"`
}

// configFields mirrors Config's known, tagged fields without Extra, so
// marshal/unmarshal of the side channel never recurses into itself.
type configFields struct {
	BaseURL                  string  `json:"base_url"`
	SealedToken              string  `json:"sealed_token"`
	SyncIntervalMinutes      int     `json:"sync_interval_minutes"`
	RateLimit                float64 `json:"rate_limit"`
	Theme                    string  `json:"theme,omitempty"`
	Debug                    bool    `json:"debug"`
	ShowLogConsole           bool    `json:"show_log_console"`
	ShowMultilineRecords     bool    `json:"show_multiline_records"`
	OfflineMode              bool    `json:"offline_mode"`
	KeepaliveIntervalSeconds int     `json:"keepalive_interval_seconds"`
	QueueHistoryPersist      bool    `json:"queue_history_persist"`
	QueueHistoryCap          int     `json:"queue_history_cap"`
}

func (c Config) toFields() configFields {
	return configFields{
		BaseURL: c.BaseURL, SealedToken: c.SealedToken, SyncIntervalMinutes: c.SyncIntervalMinutes,
		RateLimit: c.RateLimit, Theme: c.Theme, Debug: c.Debug, ShowLogConsole: c.ShowLogConsole,
		ShowMultilineRecords: c.ShowMultilineRecords, OfflineMode: c.OfflineMode,
		KeepaliveIntervalSeconds: c.KeepaliveIntervalSeconds, QueueHistoryPersist: c.QueueHistoryPersist,
		QueueHistoryCap: c.QueueHistoryCap,
	}
}

func (f configFields) apply(c *Config) {
	c.BaseURL, c.SealedToken, c.SyncIntervalMinutes = f.BaseURL, f.SealedToken, f.SyncIntervalMinutes
	c.RateLimit, c.Theme, c.Debug = f.RateLimit, f.Theme, f.Debug
	c.ShowLogConsole, c.ShowMultilineRecords, c.OfflineMode = f.ShowLogConsole, f.ShowMultilineRecords, f.OfflineMode
	c.KeepaliveIntervalSeconds, c.QueueHistoryPersist, c.QueueHistoryCap = f.KeepaliveIntervalSeconds, f.QueueHistoryPersist, f.QueueHistoryCap
}

// MarshalJSON writes the known fields merged with whatever unrecognized
// keys were preserved in Extra, known fields taking precedence.
func (c Config) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(c.toFields())
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the known fields and stashes everything else in Extra.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var fields configFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	fields.apply(c)

	for _, known := range []string{
		"base_url", "sealed_token", "sync_interval_minutes", "rate_limit", "theme", "debug",
		"show_log_console", "show_multiline_records", "offline_mode", "keepalive_interval_seconds",
		"queue_history_persist", "queue_history_cap",
	} {
		delete(raw, known)
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// DefaultConfig returns a profile's initial settings, matching the
// service's documented base URL and the spec's default sync/rate/history
// values.
func DefaultConfig() Config {
	return Config{
		BaseURL:             "https://desec.io/api/v1",
		SyncIntervalMinutes: 15,
		RateLimit:           1,
		QueueHistoryCap:     5000,
		QueueHistoryPersist: true,
	}
}

var configValidator = validator.New()

// ValidateConfig enforces the numeric bounds from §4.6: sync interval
// 1-60 minutes, rate limit 0-10 req/s.
func ValidateConfig(c Config) error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig reads and validates the profile's config.json.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ValidateConfig(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// SaveConfig writes c to path atomically (temp file + rename).
func SaveConfig(path string, c Config) error {
	if err := ValidateConfig(c); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename config file into place: %w", err)
	}
	return nil
}
